package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Options configures a Store.
type Options struct {
	CookieName  string
	CookiePath  string
	TTL         time.Duration
	MaxSessions int
	// HashKey signs the cookie. A random key is generated when empty, which
	// means sessions do not survive a restart.
	HashKey []byte
	// BlockKey optionally encrypts the cookie (16, 24 or 32 bytes).
	BlockKey []byte
	Secure   bool
	Logger   logging.Logger
	// OnCreate is called after every new session.
	OnCreate func()
}

// Store holds live sessions. It is safe for concurrent use.
type Store struct {
	cache    *expirable.LRU[string, *Session]
	codec    *securecookie.SecureCookie
	name     string
	path     string
	secure   bool
	logger   logging.Logger
	onCreate func()
}

// NewStore creates a session store.
func NewStore(opts Options) *Store {
	if opts.CookieName == "" {
		opts.CookieName = "hyrax_session"
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10000
	}
	if len(opts.HashKey) == 0 {
		opts.HashKey = securecookie.GenerateRandomKey(32)
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}

	// The cookie is never re-issued, so its timestamp is the login time.
	// Idle expiry is enforced by the cache instead.
	codec := securecookie.New(opts.HashKey, opts.BlockKey)
	codec.MaxAge(0)

	return &Store{
		cache:    expirable.NewLRU[string, *Session](opts.MaxSessions, nil, opts.TTL),
		codec:    codec,
		name:     opts.CookieName,
		path:     opts.CookiePath,
		secure:   opts.Secure,
		logger:   opts.Logger,
		onCreate: opts.OnCreate,
	}
}

// Load returns the live session referenced by the request cookie and
// refreshes its idle timeout. It returns ErrNotFound when there is none.
func (s *Store) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.name)
	if err != nil {
		return nil, ErrNotFound
	}
	var id string
	if err := s.codec.Decode(s.name, cookie.Value, &id); err != nil {
		s.logger.Debug("Discarding undecodable session cookie", logging.F("error", err.Error()))
		return nil, ErrNotFound
	}
	sess, ok := s.cache.Get(id)
	if !ok || !sess.Valid() {
		return nil, ErrNotFound
	}
	s.cache.Add(id, sess)
	return sess, nil
}

// New creates a session and writes its cookie to w.
func (s *Store) New(w http.ResponseWriter) (*Session, error) {
	id := uuid.NewString()
	encoded, err := s.codec.Encode(s.name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session cookie: %w", err)
	}
	sess := newSession(id, s)
	s.cache.Add(id, sess)

	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    encoded,
		Path:     s.path,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if s.onCreate != nil {
		s.onCreate()
	}
	return sess, nil
}

// GetOrCreate returns the request's session, creating one when needed.
// The boolean reports whether a new session was created.
func (s *Store) GetOrCreate(w http.ResponseWriter, r *http.Request) (*Session, bool, error) {
	if sess, err := s.Load(r); err == nil {
		return sess, false, nil
	}
	sess, err := s.New(w)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) remove(id string) {
	s.cache.Remove(id)
}
