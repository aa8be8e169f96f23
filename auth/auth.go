package auth

import (
	"context"
	"fmt"
	"net/http"

	resp "github.com/promptdeck/billing/response"

	"go.uber.org/zap"
)

// ContextKey is a defined type to be used in context.Context containing the Claims
type ContextKey string

// Context is key used in context.Context containing the Claims
const Context ContextKey = "authContext"

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "Dev"
	EnvProduction  Environment = "Prod"
)

// Headers injected by the edge gateway after it has validated the session
// token. The core trusts these as-is and performs no token validation itself.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
)

// Claims carries the authenticated caller identity for the duration of a request
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Options provides initialization parameters for Auth
type Options struct {
	Logger *zap.Logger

	Environment Environment
}

// Auth extracts the caller identity the edge gateway injected into the request
type Auth struct {
	Options
}

func (o *Options) validate() error {
	if o == nil {
		return fmt.Errorf("nil option is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if o.Environment == "" {
		o.Environment = EnvDevelopment
	}
	return nil
}

// New will return a new instance of Auth
func New(option Options) (*Auth, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	return &Auth{
		Options: option,
	}, nil
}

// Middleware returns a http middleware populating Claims from the gateway headers
func (a *Auth) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := r.Header.Get(HeaderUserID)
			if len(uid) == 0 {
				resp.WriteError(w, r, resp.ErrNoIdentity())
				return
			}
			claims := &Claims{
				ID:    uid,
				Email: r.Header.Get(HeaderUserEmail),
			}

			ctx := context.WithValue(r.Context(), Context, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimCheck returns a http middlware to authenticated route to ensure that Claims exists in the context
func (a *Auth) ClaimCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := r.Context().Value(Context).(*Claims)
			if !ok {
				a.Logger.Error("Context has no Claims")
				resp.WriteError(w, r, resp.ErrUnexpected())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
