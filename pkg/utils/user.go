package utils

import (
	"os"
	"os/user"
	"strconv"
)

// sudoCaller returns the account that invoked sudo, or nil when not under
// sudo or the account cannot be resolved.
func sudoCaller() *user.User {
	name := os.Getenv("SUDO_USER")
	if name == "" {
		return nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return nil
	}
	return u
}

// HomeDir is the caller's home even under sudo, so `sudo sentinel up`
// reads the same ~/.sentinel as `sentinel status`.
func HomeDir() (string, error) {
	if u := sudoCaller(); u != nil {
		return u.HomeDir, nil
	}
	return os.UserHomeDir()
}

// FixFileOwnership hands path back to the sudo caller. Without one it does nothing.
func FixFileOwnership(path string) error {
	u := sudoCaller()
	if u == nil {
		return nil
	}
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)
	return os.Chown(path, uid, gid)
}
