// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package regtoken implements registration tokens: named invitation
// records that authorize account creation and optionally grant
// privileges to the accounts they create.
package regtoken

import (
	"errors"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/user"
	"github.com/wingedpig/burrow/internal/util"
)

// ErrNotFound means no token record exists with the given name.
var ErrNotFound = errors.New("regtoken: token not found")

// Info is a registration token record. Uses counts down the remaining
// grants; a negative value means unlimited. ExpiresOn of zero means the
// token never expires.
type Info struct {
	Name      string
	CreatedBy string
	ExpiresOn int64
	Uses      int64
	Used      int64
	Grants    user.Privilege
}

// Create writes a new token record. An empty name gets a random one.
func Create(d *db.Db, name, createdBy string, expiresOn, uses int64, grants user.Privilege) (*Info, error) {
	if name == "" {
		name = util.RandomString(16)
	}

	ref, err := d.Create("tokens", "registration", name)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Name:      name,
		CreatedBy: createdBy,
		ExpiresOn: expiresOn,
		Uses:      uses,
		Grants:    grants,
	}
	writeInfo(ref.Json(), info)

	if err := d.Unlock(ref); err != nil {
		return nil, err
	}
	return info, nil
}

// Get reads a token record.
func Get(d *db.Db, name string) (*Info, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	ref, err := d.Lock("tokens", "registration", name)
	if err != nil {
		return nil, ErrNotFound
	}
	info := readInfo(ref.Json())
	if err := d.Unlock(ref); err != nil {
		return nil, err
	}
	return info, nil
}

// List returns every token record.
func List(d *db.Db) ([]*Info, error) {
	names, err := d.List("tokens", "registration")
	if err != nil {
		return nil, err
	}
	infos := make([]*Info, 0, len(names))
	for _, name := range names {
		info, err := Get(d, name)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Delete removes a token record.
func Delete(d *db.Db, name string) error {
	if err := d.Delete("tokens", "registration", name); err != nil {
		return ErrNotFound
	}
	return nil
}

// Valid reports whether the token can still authorize a registration:
// it has uses remaining and has not expired.
func (i *Info) Valid() bool {
	if i == nil || i.Uses == 0 {
		return false
	}
	return i.ExpiresOn == 0 || util.NowMillis() < i.ExpiresOn
}

// Use consumes one use of the token, updating the stored record under
// its lock. Unlimited tokens only count the use.
func Use(d *db.Db, name string) error {
	ref, err := d.Lock("tokens", "registration", name)
	if err != nil {
		return ErrNotFound
	}

	obj := ref.Json()
	if uses := obj.Get("uses").AsInt(); uses > 0 {
		obj.Set("uses", json.IntValue(uses-1))
	}
	obj.Set("used", json.IntValue(obj.Get("used").AsInt()+1))

	return d.Unlock(ref)
}

// JSON renders the record the way the admin API serves it.
func (i *Info) JSON() *json.Object {
	obj := json.NewObject()
	obj.Set("name", json.StringValue(i.Name))
	if i.CreatedBy != "" {
		obj.Set("createdBy", json.StringValue(i.CreatedBy))
	}
	obj.Set("expiresOn", json.IntValue(i.ExpiresOn))
	obj.Set("uses", json.IntValue(i.Uses))
	obj.Set("used", json.IntValue(i.Used))
	obj.Set("grants", user.EncodePrivileges(i.Grants))
	return obj
}

func writeInfo(obj *json.Object, info *Info) {
	obj.Set("name", json.StringValue(info.Name))
	if info.CreatedBy != "" {
		obj.Set("createdBy", json.StringValue(info.CreatedBy))
	}
	obj.Set("expiresOn", json.IntValue(info.ExpiresOn))
	obj.Set("uses", json.IntValue(info.Uses))
	obj.Set("used", json.IntValue(info.Used))
	obj.Set("grants", user.EncodePrivileges(info.Grants))
}

func readInfo(obj *json.Object) *Info {
	return &Info{
		Name:      obj.Get("name").AsString(),
		CreatedBy: obj.Get("createdBy").AsString(),
		ExpiresOn: obj.Get("expiresOn").AsInt(),
		Uses:      obj.Get("uses").AsInt(),
		Used:      obj.Get("used").AsInt(),
		Grants:    user.DecodePrivileges(obj.Get("grants")),
	}
}
