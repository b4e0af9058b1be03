package identity

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
)

var ErrNoCredential = errors.New("no credential available; sign in first")

// Provider supplies the signed-in user's id and bearer credential.
// CurrentUserID returns "" when nobody is signed in.
type Provider interface {
	CurrentUserID() string
	Token() (string, error)
}

type Static struct {
	UserID      string
	AccessToken string
}

func (s Static) CurrentUserID() string {
	return strings.TrimSpace(s.UserID)
}

func (s Static) Token() (string, error) {
	token := strings.TrimSpace(s.AccessToken)
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

type credentialsFile struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

// File reads credentials written by an external sign-in flow. The file is
// re-read when it changes on disk so a fresh sign-in is picked up.
type File struct {
	path string

	mu      sync.Mutex
	modTime int64
	creds   credentialsFile
}

func NewFile(path string) *File {
	return &File{path: strings.TrimSpace(path)}
}

func (f *File) CurrentUserID() string {
	creds, err := f.load()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(creds.UserID)
}

func (f *File) Token() (string, error) {
	creds, err := f.load()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(creds.AccessToken)
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (f *File) load() (credentialsFile, error) {
	if f == nil || f.path == "" {
		return credentialsFile{}, ErrNoCredential
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.creds = credentialsFile{}
			f.modTime = 0
			return credentialsFile{}, ErrNoCredential
		}
		return credentialsFile{}, err
	}
	if info.ModTime().UnixNano() == f.modTime {
		return f.creds, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return credentialsFile{}, err
	}
	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return credentialsFile{}, err
	}
	f.creds = creds
	f.modTime = info.ModTime().UnixNano()
	return creds, nil
}

// Chain consults providers in order; the first with a value wins.
type Chain []Provider

func (c Chain) CurrentUserID() string {
	for _, p := range c {
		if p == nil {
			continue
		}
		if id := p.CurrentUserID(); id != "" {
			return id
		}
	}
	return ""
}

func (c Chain) Token() (string, error) {
	var lastErr error = ErrNoCredential
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token()
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil && !errors.Is(err, ErrNoCredential) {
			lastErr = err
		}
	}
	return "", lastErr
}
