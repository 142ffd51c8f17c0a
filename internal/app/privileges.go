// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"log/slog"
	osuser "os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/wingedpig/burrow/internal/config"
)

// dropPrivileges switches the process to the configured uid/gid. It must
// run after the listeners are bound and before any request is served.
func dropPrivileges(runAs *config.RunAs) error {
	if unix.Getuid() != 0 {
		slog.Warn("not running as root, ignoring runAs directive")
		return nil
	}

	u, err := osuser.Lookup(runAs.UID)
	if err != nil {
		return fmt.Errorf("runAs: unknown user %q: %w", runAs.UID, err)
	}
	g, err := osuser.LookupGroup(runAs.GID)
	if err != nil {
		return fmt.Errorf("runAs: unknown group %q: %w", runAs.GID, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("runAs: bad uid %q", u.Uid)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return fmt.Errorf("runAs: bad gid %q", g.Gid)
	}

	// Group first; once the uid is gone we can no longer switch groups.
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("runAs: setgid: %w", err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("runAs: setuid: %w", err)
	}

	slog.Info("dropped privileges", "uid", runAs.UID, "gid", runAs.GID)
	return nil
}
