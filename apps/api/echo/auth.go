package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const (
	authCookieName    = "authToken"
	refreshCookieName = "refreshToken"
	contextUserKey    = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	UserID int `json:"uid"`
	jwt.StandardClaims
}

// sessionManager issues, verifies and rotates the cookie pair backing a session.
// The access and refresh tokens are signed with separate secrets so one cannot
// stand in for the other.
type sessionManager struct {
	conf   *core.Config
	usrSvc *user.Service
}

func newSessionManager(conf *core.Config, usrSvc *user.Service) *sessionManager {
	return &sessionManager{conf: conf, usrSvc: usrSvc}
}

func (sm *sessionManager) generateToken(usr user.User, secret []byte, delta time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: usr.ID,
		StandardClaims: jwt.StandardClaims{
			Issuer:    sm.conf.AppName,
			ExpiresAt: now.Add(delta).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// tokenPair generates a fresh (access, refresh) token pair for usr.
func (sm *sessionManager) tokenPair(usr user.User) (access, refresh string, err error) {
	if access, err = sm.generateToken(usr, sm.conf.SecretKey, sm.conf.Server.AccessTokenExpirationDelta); err != nil {
		return "", "", err
	}
	if refresh, err = sm.generateToken(usr, sm.conf.RefreshSecretKey, sm.conf.Server.RefreshTokenExpirationDelta); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (sm *sessionManager) parseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	return claims, nil
}

func (sm *sessionManager) newCookie(name, value string, delta time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(delta / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (sm *sessionManager) setCookies(ctx echo.Context, access, refresh string) {
	ctx.SetCookie(sm.newCookie(authCookieName, access, sm.conf.Server.AccessTokenExpirationDelta))
	ctx.SetCookie(sm.newCookie(refreshCookieName, refresh, sm.conf.Server.RefreshTokenExpirationDelta))
}

func (sm *sessionManager) clearCookies(ctx echo.Context) {
	ctx.SetCookie(sm.newCookie(authCookieName, "", -time.Second))
	ctx.SetCookie(sm.newCookie(refreshCookieName, "", -time.Second))
}

// middleware authenticates the request off the cookie pair. A valid access token lets
// the request through as-is; an invalid one with a valid refresh token triggers a
// silent rotation (fresh pair set on the response) and the request still proceeds.
// Anything else is a 401.
func (sm *sessionManager) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			authCookie, err := ctx.Cookie(authCookieName)
			if err != nil {
				return errUnauthorized
			}
			refreshCookie, err := ctx.Cookie(refreshCookieName)
			if err != nil {
				return errUnauthorized
			}

			claims, err := sm.parseToken(authCookie.Value, sm.conf.SecretKey)
			if err == nil {
				usr, err := sm.usrSvc.GetByID(ctx.Request().Context(), claims.UserID)
				if err != nil {
					return errUnauthorized
				}
				ctx.Set(contextUserKey, usr)
				return next(ctx)
			}

			// access token rejected; fall back on the refresh token
			claims, err = sm.parseToken(refreshCookie.Value, sm.conf.RefreshSecretKey)
			if err != nil {
				return errSessionExpired
			}
			usr, err := sm.usrSvc.GetByID(ctx.Request().Context(), claims.UserID)
			if err != nil {
				return errUnauthorized
			}

			access, refresh, err := sm.tokenPair(usr)
			if err != nil {
				return errors.Wrap(err, "rotating session tokens")
			}
			sm.setCookies(ctx, access, refresh)

			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// login verifies the credentials and opens a session by setting both cookies.
func (sm *sessionManager) login(ctx echo.Context, creds user.Credentials) (user.User, error) {
	usr, err := sm.usrSvc.GetByEmail(ctx.Request().Context(), creds.Email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFail
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return user.User{}, errAuthenticationFail
	}

	access, refresh, err := sm.tokenPair(usr)
	if err != nil {
		return user.User{}, err
	}
	sm.setCookies(ctx, access, refresh)
	return usr, nil
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
