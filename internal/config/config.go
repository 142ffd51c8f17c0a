// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config defines the server configuration, which lives in the
// object store as the single (config) record. The whole tree is parsed
// and validated before any of it is applied; a config that fails
// validation changes nothing.
package config

import (
	"fmt"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
)

// Config is the validated server configuration.
type Config struct {
	ServerName     string
	BaseURL        string
	IdentityServer string
	RunAs          *RunAs
	Listen         []Listener
	MaxCache       int64
	Federation     bool
	Registration   bool
	Log            Log
	PidFile        string
}

// RunAs names the uid/gid the server should drop to after binding.
type RunAs struct {
	UID string
	GID string
}

// Listener configures one HTTP listener.
type Listener struct {
	Port           int
	Threads        int
	MaxConnections int
	TLS            *TLS
}

// TLS points at a certificate/key pair.
type TLS struct {
	Cert string
	Key  string
}

// Log configures the logger.
type Log struct {
	Level           string
	Output          string
	TimestampFormat string
	Color           bool
}

// Defaults applied when the record omits a directive.
const (
	DefaultPort           = 8008
	DefaultThreads        = 4
	DefaultMaxConnections = 32
	DefaultMaxCache       = 1 << 20
)

// Parse validates a config tree and returns the typed configuration.
// Every error names the offending directive.
func Parse(obj *json.Object) (*Config, error) {
	if obj == nil {
		return nil, fmt.Errorf("config: empty configuration")
	}

	cfg := &Config{}

	v := obj.Get("serverName")
	if v == nil || v.Type() != json.TypeString || v.AsString() == "" {
		return nil, fmt.Errorf("config: serverName is required and must be a string")
	}
	cfg.ServerName = v.AsString()

	if v := obj.Get("baseUrl"); v != nil && v.Type() != json.TypeNull {
		if v.Type() != json.TypeString {
			return nil, fmt.Errorf("config: baseUrl must be a string")
		}
		cfg.BaseURL = v.AsString()
	} else {
		cfg.BaseURL = "https://" + cfg.ServerName
	}

	if v := obj.Get("identityServer"); v != nil && v.Type() != json.TypeNull {
		if v.Type() != json.TypeString {
			return nil, fmt.Errorf("config: identityServer must be a string")
		}
		cfg.IdentityServer = v.AsString()
	}

	if v := obj.Get("runAs"); v != nil && v.Type() != json.TypeNull {
		runAs, err := parseRunAs(v)
		if err != nil {
			return nil, err
		}
		cfg.RunAs = runAs
	}

	listen, err := parseListen(obj.Get("listen"))
	if err != nil {
		return nil, err
	}
	cfg.Listen = listen

	cfg.MaxCache = DefaultMaxCache
	if v := obj.Get("maxCache"); v != nil && v.Type() != json.TypeNull {
		if v.Type() != json.TypeInteger {
			return nil, fmt.Errorf("config: maxCache must be an integer")
		}
		if v.AsInt() < 0 {
			return nil, fmt.Errorf("config: maxCache must not be negative")
		}
		cfg.MaxCache = v.AsInt()
	}

	for _, flag := range []struct {
		key  string
		into *bool
	}{
		{"federation", &cfg.Federation},
		{"registration", &cfg.Registration},
	} {
		v := obj.Get(flag.key)
		if v == nil || v.Type() != json.TypeBoolean {
			return nil, fmt.Errorf("config: %s is required and must be a boolean", flag.key)
		}
		*flag.into = v.AsBool()
	}

	logCfg, err := parseLog(obj.Get("log"))
	if err != nil {
		return nil, err
	}
	cfg.Log = logCfg

	if v := obj.Get("pid"); v != nil && v.Type() != json.TypeNull {
		if v.Type() != json.TypeString {
			return nil, fmt.Errorf("config: pid must be a string")
		}
		cfg.PidFile = v.AsString()
	}

	return cfg, nil
}

func parseRunAs(v *json.Value) (*RunAs, error) {
	obj := v.AsObject()
	if obj == nil {
		return nil, fmt.Errorf("config: runAs must be an object with uid and gid")
	}
	uid := obj.Get("uid")
	if uid == nil || uid.Type() != json.TypeString {
		return nil, fmt.Errorf("config: runAs.uid is required and must be a string")
	}
	runAs := &RunAs{UID: uid.AsString(), GID: uid.AsString()}
	if gid := obj.Get("gid"); gid != nil && gid.Type() != json.TypeNull {
		if gid.Type() != json.TypeString {
			return nil, fmt.Errorf("config: runAs.gid must be a string")
		}
		runAs.GID = gid.AsString()
	}
	return runAs, nil
}

func parseListen(v *json.Value) ([]Listener, error) {
	if v == nil || v.Type() == json.TypeNull {
		return []Listener{{
			Port:           DefaultPort,
			Threads:        DefaultThreads,
			MaxConnections: DefaultMaxConnections,
		}}, nil
	}
	if v.Type() != json.TypeArray {
		return nil, fmt.Errorf("config: listen must be an array of listener objects")
	}

	arr := v.AsArray()
	if len(arr) == 0 {
		return nil, fmt.Errorf("config: listen must name at least one listener")
	}

	listeners := make([]Listener, 0, len(arr))
	for i, elem := range arr {
		obj := elem.AsObject()
		if obj == nil {
			return nil, fmt.Errorf("config: listen[%d] must be an object", i)
		}

		port := obj.Get("port")
		if port == nil || port.Type() != json.TypeInteger {
			return nil, fmt.Errorf("config: listen[%d].port is required and must be an integer", i)
		}
		if port.AsInt() < 1 || port.AsInt() > 65535 {
			return nil, fmt.Errorf("config: listen[%d].port is out of range", i)
		}

		l := Listener{
			Port:           int(port.AsInt()),
			Threads:        DefaultThreads,
			MaxConnections: DefaultMaxConnections,
		}

		if v := obj.Get("threads"); v != nil && v.Type() != json.TypeNull {
			if v.Type() != json.TypeInteger || v.AsInt() < 1 {
				return nil, fmt.Errorf("config: listen[%d].threads must be a positive integer", i)
			}
			l.Threads = int(v.AsInt())
		}
		if v := obj.Get("maxConnections"); v != nil && v.Type() != json.TypeNull {
			if v.Type() != json.TypeInteger || v.AsInt() < 1 {
				return nil, fmt.Errorf("config: listen[%d].maxConnections must be a positive integer", i)
			}
			l.MaxConnections = int(v.AsInt())
		}

		if v := obj.Get("tls"); v != nil && v.Type() != json.TypeNull {
			tlsObj := v.AsObject()
			if tlsObj == nil {
				return nil, fmt.Errorf("config: listen[%d].tls must be an object", i)
			}
			cert := tlsObj.Get("cert").AsString()
			key := tlsObj.Get("key").AsString()
			if cert == "" || key == "" {
				return nil, fmt.Errorf("config: listen[%d].tls requires both cert and key", i)
			}
			l.TLS = &TLS{Cert: cert, Key: key}
		}

		listeners = append(listeners, l)
	}
	return listeners, nil
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"message": true,
	"notice":  true,
	"warning": true,
	"error":   true,
}

var validLogOutputs = map[string]bool{
	"stdout": true,
	"file":   true,
}

func parseLog(v *json.Value) (Log, error) {
	logCfg := Log{
		Level:           "message",
		Output:          "stdout",
		TimestampFormat: "default",
	}
	if v == nil || v.Type() == json.TypeNull {
		return logCfg, nil
	}

	obj := v.AsObject()
	if obj == nil {
		return Log{}, fmt.Errorf("config: log must be an object")
	}

	if lv := obj.Get("level"); lv != nil && lv.Type() != json.TypeNull {
		if !validLogLevels[lv.AsString()] {
			return Log{}, fmt.Errorf("config: invalid log.level %q", lv.AsString())
		}
		logCfg.Level = lv.AsString()
	}
	if out := obj.Get("output"); out != nil && out.Type() != json.TypeNull {
		if !validLogOutputs[out.AsString()] {
			return Log{}, fmt.Errorf("config: invalid log.output %q", out.AsString())
		}
		logCfg.Output = out.AsString()
	}
	if ts := obj.Get("timestampFormat"); ts != nil && ts.Type() != json.TypeNull {
		if ts.Type() != json.TypeString {
			return Log{}, fmt.Errorf("config: log.timestampFormat must be a string")
		}
		logCfg.TimestampFormat = ts.AsString()
	}
	if color := obj.Get("color"); color != nil && color.Type() != json.TypeNull {
		if color.Type() != json.TypeBoolean {
			return Log{}, fmt.Errorf("config: log.color must be a boolean")
		}
		logCfg.Color = color.AsBool()
	}

	return logCfg, nil
}

// RestartRequired reports whether switching from old to new needs a
// process restart: listener-level settings and process identity cannot
// be re-applied live.
func RestartRequired(old, new *Config) bool {
	if len(old.Listen) != len(new.Listen) {
		return true
	}
	for i := range old.Listen {
		a, b := old.Listen[i], new.Listen[i]
		if a.Port != b.Port || a.Threads != b.Threads || a.MaxConnections != b.MaxConnections {
			return true
		}
		if (a.TLS == nil) != (b.TLS == nil) {
			return true
		}
		if a.TLS != nil && (a.TLS.Cert != b.TLS.Cert || a.TLS.Key != b.TLS.Key) {
			return true
		}
	}
	if (old.RunAs == nil) != (new.RunAs == nil) {
		return true
	}
	if old.RunAs != nil && *old.RunAs != *new.RunAs {
		return true
	}
	return old.PidFile != new.PidFile
}

// Default builds the config tree written on first startup.
func Default(serverName string) *json.Object {
	obj := json.NewObject()
	obj.Set("serverName", json.StringValue(serverName))
	obj.Set("baseUrl", json.StringValue("https://"+serverName))

	listener := json.NewObject()
	listener.Set("port", json.IntValue(DefaultPort))
	listener.Set("threads", json.IntValue(DefaultThreads))
	listener.Set("maxConnections", json.IntValue(DefaultMaxConnections))
	obj.Set("listen", json.ArrayValue(json.ObjectValue(listener)))

	obj.Set("maxCache", json.IntValue(DefaultMaxCache))
	obj.Set("federation", json.BoolValue(false))
	obj.Set("registration", json.BoolValue(false))

	logObj := json.NewObject()
	logObj.Set("level", json.StringValue("message"))
	logObj.Set("output", json.StringValue("stdout"))
	logObj.Set("timestampFormat", json.StringValue("default"))
	logObj.Set("color", json.BoolValue(false))
	obj.Set("log", json.ObjectValue(logObj))

	return obj
}

// Exists reports whether a config record is present.
func Exists(d *db.Db) bool {
	return d.Exists("config")
}

// CreateDefault writes the default record. It fails if one exists.
func CreateDefault(d *db.Db, serverName string) error {
	ref, err := d.Create("config")
	if err != nil {
		return err
	}
	ref.SetJson(Default(serverName))
	return d.Unlock(ref)
}

// Locked is an exclusive reference to the stored config record plus its
// parsed form.
type Locked struct {
	*Config
	db  *db.Db
	ref *db.Ref
}

// Lock takes the config record and parses it.
func Lock(d *db.Db) (*Locked, error) {
	ref, err := d.Lock("config")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(ref.Json())
	if err != nil {
		d.Unlock(ref)
		return nil, err
	}
	return &Locked{Config: cfg, db: d, ref: ref}, nil
}

// Json returns the raw stored tree.
func (l *Locked) Json() *json.Object {
	return l.ref.Json()
}

// SetJson replaces the stored tree. The caller must have validated it.
func (l *Locked) SetJson(obj *json.Object) {
	l.ref.SetJson(obj)
}

// Unlock releases the record.
func (l *Locked) Unlock() error {
	if l == nil || l.ref == nil {
		return nil
	}
	ref := l.ref
	l.ref = nil
	return l.db.Unlock(ref)
}

// Load parses the stored config without holding the lock afterwards.
func Load(d *db.Db) (*Config, error) {
	locked, err := Lock(d)
	if err != nil {
		return nil, err
	}
	cfg := locked.Config
	if err := locked.Unlock(); err != nil {
		return nil, err
	}
	return cfg, nil
}
