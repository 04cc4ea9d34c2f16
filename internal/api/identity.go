package api

import (
	"net/http"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
)

// HeaderUserContext reads the identity headers set by the upstream auth
// proxy. Authentication itself happens there; requests reaching this service
// without an id are unauthenticated.
type HeaderUserContext struct{}

var _ ports.UserContext = HeaderUserContext{}

func (HeaderUserContext) Resolve(r *http.Request) (domain.User, error) {
	id := r.Header.Get("X-User-Id")
	if id == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	return domain.User{
		ID:   id,
		Role: r.Header.Get("X-User-Role"),
	}, nil
}
