// Package keyring stores the PostgreSQL connection string in the OS keyring
// so credentials never live in config files or shell history.
package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/stride-app/stride/internal/constants"
)

var (
	ErrNotFound           = errors.New("no connection string stored in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// GetConnectionString reads the stored connection string. Returns ErrNotFound
// when nothing is stored, ErrKeyringUnavailable when the backend cannot be
// reached.
func GetConnectionString() (string, error) {
	conn, err := gokeyring.Get(constants.AppName, constants.DefaultKeyringUser)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return conn, nil
}

func SetConnectionString(conn string) error {
	if conn == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := gokeyring.Set(constants.AppName, constants.DefaultKeyringUser, conn); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}
	return nil
}

func DeleteConnectionString() error {
	err := gokeyring.Delete(constants.AppName, constants.DefaultKeyringUser)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	return nil
}

// IsAvailable probes the keyring backend with a read. A missing entry still
// means the backend answered, so only other errors count as unavailable.
func IsAvailable() bool {
	_, err := gokeyring.Get(constants.AppName, constants.DefaultKeyringUser)
	return err == nil || errors.Is(err, gokeyring.ErrNotFound)
}
