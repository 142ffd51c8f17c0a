// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package uia implements user-interactive authentication: multi-stage
// flows whose progress is persisted as (user_interactive, <session>)
// objects until every stage of some flow has been completed.
package uia

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wingedpig/burrow/internal/config"
	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/regtoken"
	"github.com/wingedpig/burrow/internal/user"
	"github.com/wingedpig/burrow/internal/util"
)

// Stage types understood by the dispatcher.
const (
	StageDummy             = "m.login.dummy"
	StagePassword          = "m.login.password"
	StageRegistrationToken = "m.login.registration_token"
)

// Sessions idle longer than this are garbage-collected.
const sessionTimeout = 15 * time.Minute

// Stage is one step of a flow.
type Stage struct {
	Type   string
	Params *json.Object // shown to the client in the flow catalog
}

// Flow is an ordered list of stages that satisfies an endpoint's auth
// requirement once fully completed.
type Flow []Stage

// DummyFlow is the single-stage flow that always succeeds.
func DummyFlow() Flow {
	return Flow{{Type: StageDummy}}
}

// RegistrationTokenFlow requires a valid registration token.
func RegistrationTokenFlow() Flow {
	return Flow{{Type: StageRegistrationToken}}
}

// PasswordFlow requires the user's password.
func PasswordFlow() Flow {
	return Flow{{Type: StagePassword}}
}

// Result is the outcome of a Complete call that did not fail
// internally. When Completed is false the handler must reply with
// Status and Response and stop.
type Result struct {
	Completed bool
	Session   string
	Status    int
	Response  *json.Object
}

// buildFlows renders the flow catalog shared by every 401 response.
func buildFlows(flows []Flow) *json.Object {
	response := json.NewObject()
	responseFlows := json.ArrayValue()
	params := json.NewObject()

	for _, flow := range flows {
		stages := json.ArrayValue()
		for _, stage := range flow {
			stages.Append(json.StringValue(stage.Type))
			if stage.Params != nil {
				params.Set(stage.Type, json.ObjectValue(stage.Params))
			}
		}
		flowObj := json.NewObject()
		flowObj.Set("stages", stages)
		responseFlows.Append(json.ObjectValue(flowObj))
	}

	response.Set("flows", responseFlows)
	response.Set("params", json.ObjectValue(params))
	return response
}

// newSession persists a fresh session and returns the catalog response
// for it.
func newSession(d *db.Db, flows []Flow) (*Result, error) {
	session := uuid.NewString()

	ref, err := d.Create("user_interactive", session)
	if err != nil {
		return nil, err
	}
	obj := ref.Json()
	obj.Set("completed", json.ArrayValue())
	obj.Set("last_access", json.IntValue(util.NowMillis()))
	if err := d.Unlock(ref); err != nil {
		return nil, err
	}

	response := buildFlows(flows)
	response.Set("completed", json.ArrayValue())
	response.Set("session", json.StringValue(session))

	return &Result{
		Session:  session,
		Status:   http.StatusUnauthorized,
		Response: response,
	}, nil
}

func catalogResult(flows []Flow, session string, completed []string) *Result {
	response := buildFlows(flows)
	completedArr := json.ArrayValue()
	for _, stage := range completed {
		completedArr.Append(json.StringValue(stage))
	}
	response.Set("completed", completedArr)
	response.Set("session", json.StringValue(session))

	return &Result{
		Session:  session,
		Status:   http.StatusUnauthorized,
		Response: response,
	}
}

func badJSON() *Result {
	e := matrix.NewError(matrix.ErrBadJSON, "")
	return &Result{Status: e.Status, Response: e.JSON()}
}

// matchesFlow reports whether completed is exactly some flow.
func matchesFlow(flows []Flow, completed []string) bool {
	for _, flow := range flows {
		if len(flow) != len(completed) {
			continue
		}
		match := true
		for i, stage := range flow {
			if stage.Type != completed[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// possibleNext returns the set of stage types that would advance some
// flow whose stages so far match completed.
func possibleNext(flows []Flow, completed []string) map[string]bool {
	next := make(map[string]bool)
	for _, flow := range flows {
		if len(flow) <= len(completed) {
			continue
		}
		prefix := true
		for i, stage := range completed {
			if flow[i].Type != stage {
				prefix = false
				break
			}
		}
		if prefix {
			next[flow[len(completed)].Type] = true
		}
	}
	return next
}

// Complete drives one step of user-interactive auth for a request.
// A nil error with Result.Completed false means the client still has
// work to do: the handler replies with Result.Status/Response. An error
// is an internal failure the handler maps to M_UNKNOWN.
//
// The session reference is never held across a user lock, so the store's
// documented lock order is preserved; two racing requests against the
// same session serialize on the session object per step.
func Complete(d *db.Db, cfg *config.Config, flows []Flow, request *json.Object) (*Result, error) {
	if len(flows) == 0 || request == nil {
		return nil, errInternal("no flows configured")
	}

	authVal := request.Get("auth")
	if authVal == nil {
		return newSession(d, flows)
	}
	auth := authVal.AsObject()
	if auth == nil {
		return badJSON(), nil
	}

	sessionVal := auth.Get("session")
	if sessionVal == nil || sessionVal.Type() != json.TypeString {
		return badJSON(), nil
	}
	session := sessionVal.AsString()

	ref, err := d.Lock("user_interactive", session)
	if err != nil {
		// Unknown or expired session: start over.
		return newSession(d, flows)
	}

	obj := ref.Json()
	completed := stringList(obj.Get("completed"))
	obj.Set("last_access", json.IntValue(util.NowMillis()))
	if err := d.Unlock(ref); err != nil {
		return nil, err
	}

	if matchesFlow(flows, completed) {
		return &Result{Completed: true, Session: session}, nil
	}

	authTypeVal := auth.Get("type")
	if authTypeVal == nil || authTypeVal.Type() != json.TypeString {
		return badJSON(), nil
	}
	authType := authTypeVal.AsString()

	if !possibleNext(flows, completed)[authType] {
		return catalogResult(flows, session, completed), nil
	}

	var registrationToken string
	switch authType {
	case StageDummy:
		// Always succeeds.

	case StagePassword:
		if !checkPasswordStage(d, cfg, auth) {
			return catalogResult(flows, session, completed), nil
		}

	case StageRegistrationToken:
		token := auth.Get("token").AsString()
		info, err := regtoken.Get(d, token)
		if err != nil || !info.Valid() {
			return catalogResult(flows, session, completed), nil
		}
		if err := regtoken.Use(d, token); err != nil {
			return nil, err
		}
		registrationToken = token

	default:
		return catalogResult(flows, session, completed), nil
	}

	// Record the accepted stage on the session.
	ref, err = d.Lock("user_interactive", session)
	if err != nil {
		return newSession(d, flows)
	}
	obj = ref.Json()
	completed = append(stringList(obj.Get("completed")), authType)
	completedArr := json.ArrayValue()
	for _, stage := range completed {
		completedArr.Append(json.StringValue(stage))
	}
	obj.Set("completed", completedArr)
	obj.Set("last_access", json.IntValue(util.NowMillis()))
	if registrationToken != "" {
		// The register handler reads this back to apply the token's
		// privilege grants to the new account.
		obj.Set("registration_token", json.StringValue(registrationToken))
	}
	if err := d.Unlock(ref); err != nil {
		return nil, err
	}

	if matchesFlow(flows, completed) {
		return &Result{Completed: true, Session: session}, nil
	}
	return catalogResult(flows, session, completed), nil
}

func checkPasswordStage(d *db.Db, cfg *config.Config, auth *json.Object) bool {
	password := auth.Get("password").AsString()
	identifier := auth.Get("identifier").AsObject()
	if password == "" || identifier == nil {
		return false
	}
	if identifier.Get("type").AsString() != "m.id.user" {
		return false
	}

	id := matrix.ParseUserID(identifier.Get("user").AsString(), cfg.ServerName)
	if id == nil || id.Server != cfg.ServerName {
		return false
	}

	u, err := user.Lock(d, id.Local)
	if err != nil {
		return false
	}
	defer u.Unlock()
	return u.CheckPassword(password)
}

// SessionToken returns the registration token recorded on a session, if
// any.
func SessionToken(d *db.Db, session string) string {
	if session == "" {
		return ""
	}
	ref, err := d.Lock("user_interactive", session)
	if err != nil {
		return ""
	}
	token := ref.Json().Get("registration_token").AsString()
	d.Unlock(ref)
	return token
}

// Cleanup deletes sessions idle longer than the session timeout. It is
// scheduled on the cron and must never fail the server: errors are
// returned for logging only.
func Cleanup(d *db.Db) (int, error) {
	sessions, err := d.List("user_interactive")
	if err != nil {
		return 0, err
	}

	cutoff := util.NowMillis() - sessionTimeout.Milliseconds()
	removed := 0
	for _, session := range sessions {
		ref, err := d.Lock("user_interactive", session)
		if err != nil {
			continue
		}
		lastAccess := ref.Json().Get("last_access").AsInt()
		if err := d.Unlock(ref); err != nil {
			continue
		}
		if lastAccess < cutoff {
			if err := d.Delete("user_interactive", session); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func stringList(v *json.Value) []string {
	arr := v.AsArray()
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, e.AsString())
	}
	return out
}

type internalError string

func (e internalError) Error() string { return string(e) }

func errInternal(msg string) error { return internalError("uia: " + msg) }
