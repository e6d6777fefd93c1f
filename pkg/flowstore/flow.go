// Package flowstore persists named command lists.
package flowstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrInvalidName  = errors.New("invalid flow name")
	ErrInvalidID    = errors.New("invalid flow ID")
)

var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

const maxNameLen = 200

// Flow is a saved command list.
type Flow struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Domain    string       `json:"domain" yaml:"domain"`
	Commands  command.List `json:"commands" yaml:"commands"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	Checksum  string       `json:"checksum" yaml:"checksum"`
}

// Store is the persistence boundary. Saving a flow whose name, domain and
// checksum match an existing one returns the existing ID.
type Store interface {
	SaveFlow(ctx context.Context, name, domain string, cmds []command.Command) (string, error)
	// ListFlows returns flows newest first; an empty domain lists all.
	ListFlows(ctx context.Context, domain string) ([]Flow, error)
	GetFlow(ctx context.Context, id string) (Flow, error)
	DeleteFlow(ctx context.Context, id string) error
	Close() error
}

// ValidateName trims and checks a flow name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen || strings.ContainsAny(name, "\r\n") {
		return "", ErrInvalidName
	}
	return name, nil
}

func validateID(id string) error {
	if !validIDPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// Checksum is the BLAKE2b-256 hex digest of the canonical JSON encoding of
// cmds.
func Checksum(cmds []command.Command) (string, error) {
	data, err := json.Marshal(command.List(cmds))
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Clone returns a deep copy.
func (f Flow) Clone() Flow {
	f.Commands = command.List(command.Clone(f.Commands))
	return f
}
