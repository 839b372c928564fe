package main

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	var tmp user.User
	if err := tmp.SetPassword(pwd); err != nil {
		return err
	}
	return cli.usrRepo.UpdatePassword(ctx, usr.ID, tmp.PasswordHash)
}
