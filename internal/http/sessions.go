package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/cache"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
)

const sessionCookie = "expense_session"

// sessionStore maps a browser session cookie to its view-model root. Roots
// leave the store by TTL, capacity or replacement and are closed then.
type sessionStore struct {
	roots   *cache.LRUCache[*ui.Root]
	ttl     time.Duration
	newRoot func() *ui.Root
	logger  *applog.Logger
}

func newSessionStore(maxSessions int, ttl time.Duration, newRoot func() *ui.Root, logger *applog.Logger) *sessionStore {
	s := &sessionStore{ttl: ttl, newRoot: newRoot, logger: logger}
	s.roots = cache.NewLRUCache[*ui.Root](maxSessions, ttl, cache.WithOnEvict(func(id string, root *ui.Root) {
		root.Close()
		s.logger.Debug("Session closed", applog.FieldSessionID, id)
	}))
	return s
}

// get returns the root of the request's session. fresh is true when a new
// root was created; the caller must mount it.
func (s *sessionStore) get(w http.ResponseWriter, r *http.Request) (root *ui.Root, fresh bool) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if root, ok := s.roots.Get(c.Value); ok {
			s.roots.Touch(c.Value)
			return root, false
		}
	}
	return s.reset(w, r), true
}

// reset replaces the session's root with a new unmounted one, as a page
// load does. The cookie id is kept when it is well formed.
func (s *sessionStore) reset(w http.ResponseWriter, r *http.Request) *ui.Root {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	root := s.newRoot()
	s.roots.Set(id, root)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return root
}

func (s *sessionStore) size() int {
	return s.roots.Size()
}

// close drops every session.
func (s *sessionStore) close() {
	s.roots.Purge()
}
