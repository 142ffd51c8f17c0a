// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
)

// ImportFile reads an HJSON (or plain JSON) config file, validates it,
// and stores it as the config record, replacing any existing one. Used
// by the -c flag to seed or update a database from a file.
func ImportFile(d *db.Db, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	v, err := json.FromInterface(raw)
	if err != nil {
		return fmt.Errorf("convert config file: %w", err)
	}
	obj := v.AsObject()

	if _, err := Parse(obj); err != nil {
		return err
	}

	ref, err := d.Lock("config")
	if errors.Is(err, db.ErrNotFound) {
		ref, err = d.Create("config")
	}
	if err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	ref.SetJson(obj)
	return d.Unlock(ref)
}
