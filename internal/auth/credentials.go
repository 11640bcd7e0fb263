// Package auth verifies users before their data directory is opened
package auth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UsersFileName is the credential file in the data directory
const UsersFileName = "users.csv"

var (
	// ErrMissingCredentials is returned when the email or password is empty
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrPasswordMismatch is returned when the confirmation differs from the password
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrEmailExists is returned when signing up with a registered email
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when an email cannot name a data directory
	ErrInvalidEmail = errors.New("invalid email")
)

var usersHeader = []string{"email", "password_hash", "created_at"}

// Verifier authenticates a user
type Verifier interface {
	Verify(email, password string) error
}

// Credential is one registered user
type Credential struct {
	Email     string
	Hash      []byte
	CreatedAt time.Time
}

// FileCredentials stores bcrypt hashes in a CSV file
type FileCredentials struct {
	mu   sync.Mutex
	path string
	cost int
}

// NewFileCredentials creates a credential store at path.
// A cost of zero uses bcrypt.DefaultCost.
func NewFileCredentials(path string, cost int) *FileCredentials {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &FileCredentials{path: path, cost: cost}
}

// NormalizeEmail trims and lower-cases an email so lookups ignore case
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail rejects emails that cannot be used as a directory name
func ValidateEmail(email string) error {
	if email == "" || email == "." || email == ".." ||
		strings.ContainsAny(email, `/\`+"\x00") || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// SignUp registers a new user
func (c *FileCredentials) SignUp(email, password, confirm string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.load()
	if err != nil {
		return err
	}
	if _, ok := users[email]; ok {
		return ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return c.append(Credential{Email: email, Hash: hash, CreatedAt: time.Now().UTC()})
}

// Verify checks a password against the stored hash
func (c *FileCredentials) Verify(email, password string) error {
	email = NormalizeEmail(email)

	c.mu.Lock()
	users, err := c.load()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	cred, ok := users[email]
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(cred.Hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Exists reports whether email is registered
func (c *FileCredentials) Exists(email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.load()
	if err != nil {
		return false, err
	}
	_, ok := users[NormalizeEmail(email)]
	return ok, nil
}

func (c *FileCredentials) load() (map[string]Credential, error) {
	users := make(map[string]Credential)

	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return users, nil
		}
		return nil, fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c.path, err)
		}
		if line == 1 || len(rec) < 2 {
			continue
		}
		cred := Credential{Email: NormalizeEmail(rec[0]), Hash: []byte(rec[1])}
		if len(rec) > 2 {
			cred.CreatedAt, _ = time.Parse(time.RFC3339, rec[2])
		}
		users[cred.Email] = cred
	}
	return users, nil
}

// append adds one credential, writing the header when the file is new.
// The caller must hold c.mu.
func (c *FileCredentials) append(cred Credential) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(c.path), err)
	}

	_, statErr := os.Stat(c.path)
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(usersHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{cred.Email, string(cred.Hash), cred.CreatedAt.Format(time.RFC3339)}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return f.Sync()
}
