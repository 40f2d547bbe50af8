package mockapi

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

var (
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrMissingField       = errors.New("email and password are required")
)

// DefaultMaxItems bounds how many flows and alerts are retained
const DefaultMaxItems = 500

// User is a registered account
type User struct {
	ID           string
	Username     string
	Email        string
	passwordHash []byte
	APIKey       string
	KeyCreatedAt time.Time
}

// Store is the in-memory state behind the mock API
type Store struct {
	mu       sync.RWMutex
	flows    []models.NetworkFlow // oldest first
	alerts   []models.Alert       // oldest first
	users    map[string]*User     // by email
	tokens   map[string]*User
	config   models.RemoteConfig
	maxItems int
	hashCost int
}

type StoreOptions struct {
	MaxItems int
	// bcrypt cost; zero selects bcrypt.DefaultCost
	HashCost int
}

func NewStore(opts StoreOptions) *Store {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &Store{
		users:    make(map[string]*User),
		tokens:   make(map[string]*User),
		maxItems: opts.MaxItems,
		hashCost: opts.HashCost,
		config: models.RemoteConfig{
			"detection_enabled":  true,
			"poll_interval_ms":   5000,
			"alert_retention":    opts.MaxItems,
			"protected_networks": []string{"192.168.1.0/24"},
		},
	}
}

func newToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Register creates an account and returns its first token
func (s *Store) Register(username, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrMissingField
	}
	if len(password) < 6 {
		return "", nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return "", nil, ErrEmailTaken
	}
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	u := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		passwordHash: hash,
		APIKey:       "NGR-API-" + strings.ToUpper(newToken()[:16]),
		KeyCreatedAt: time.Now().UTC(),
	}
	s.users[email] = u

	token := newToken()
	s.tokens[token] = u
	return token, u, nil
}

// Login checks the password and issues a new token
func (s *Store) Login(email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	u, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := newToken()
	s.mu.Lock()
	s.tokens[token] = u
	s.mu.Unlock()
	return token, u, nil
}

// Authenticate resolves a token to its user
func (s *Store) Authenticate(token string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.tokens[token]
	return u, ok
}

// UserID returns the id of the account registered with email
func (s *Store) UserID(email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return "", false
	}
	return u.ID, true
}

// AddFlows appends flows, dropping the oldest beyond the retention bound
func (s *Store) AddFlows(flows ...models.NetworkFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = append(s.flows, flows...)
	if over := len(s.flows) - s.maxItems; over > 0 {
		s.flows = append([]models.NetworkFlow(nil), s.flows[over:]...)
	}
}

func (s *Store) AddAlerts(alerts ...models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	if over := len(s.alerts) - s.maxItems; over > 0 {
		s.alerts = append([]models.Alert(nil), s.alerts[over:]...)
	}
}

// Flows returns up to limit flows, newest first. limit <= 0 returns all.
func (s *Store) Flows(limit int) []models.NetworkFlow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.flows, limit)
}

func (s *Store) Flow(id string) (models.NetworkFlow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.flows) - 1; i >= 0; i-- {
		if s.flows[i].ID == id {
			return s.flows[i], true
		}
	}
	return models.NetworkFlow{}, false
}

// Alerts returns up to limit alerts, newest first
func (s *Store) Alerts(limit int) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.alerts, limit)
}

func (s *Store) Alert(id string) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].ID == id {
			return s.alerts[i], true
		}
	}
	return models.Alert{}, false
}

// Status summarises activity within window of now. The network counts as
// under attack while any alert is younger than attackWindow.
func (s *Store) Status(now time.Time, window, attackWindow time.Duration) models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.Status{NetworkStatus: models.StatusSafe, LastUpdated: now.UTC()}
	for _, f := range s.flows {
		if !f.StartDateTime.Before(now.Add(-window)) {
			st.RecentFlowsCount++
		}
	}
	for _, a := range s.alerts {
		if a.Timestamp.Before(now.Add(-window)) {
			continue
		}
		st.RecentAlertsCount++
		if !a.Timestamp.Before(now.Add(-attackWindow)) {
			st.NetworkStatus = models.StatusUnderAttack
		}
	}
	return st
}

func (s *Store) Config() models.RemoteConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.RemoteConfig, len(s.config))
	for k, v := range s.config {
		out[k] = v
	}
	return out
}

func newestFirst[T any](items []T, limit int) []T {
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}
