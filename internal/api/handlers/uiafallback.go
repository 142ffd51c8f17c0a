// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/uia"
)

// UiaFallbackHandler serves the web fallback for clients that cannot
// render a UIA stage natively: a small HTML page that posts the stage
// back to the same URL.
type UiaFallbackHandler struct {
	db *db.Db
}

// NewUiaFallbackHandler creates a new UIA fallback handler.
func NewUiaFallbackHandler(d *db.Db) *UiaFallbackHandler {
	return &UiaFallbackHandler{db: d}
}

var fallbackPage = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Authentication</title>
</head>
<body>
<h1>Authentication</h1>
<p id="error" style="color: red;"></p>
{{if eq .AuthType "m.login.password"}}
<form id="auth-form">
<label for="user">Username:</label>
<input type="text" id="user">
<label for="password">Password:</label>
<input type="password" id="password">
<br>
<input type="submit" value="Authenticate">
</form>
<script>
function buildRequest() {
  let user = document.getElementById('user').value;
  let pass = document.getElementById('password').value;
  if (!user || !pass) {
    setFormError('Please specify a username and password.');
    return null;
  }
  return {
    auth: {
      type: {{.AuthType}},
      identifier: { type: 'm.id.user', user: user },
      password: pass,
      session: {{.Session}}
    }
  };
}
</script>
{{else}}
<form id="auth-form">
<label for="token">Registration Token:</label>
<input type="password" id="token">
<br>
<input type="submit" value="Authenticate">
</form>
<script>
function buildRequest() {
  let token = document.getElementById('token').value;
  if (!token) {
    setFormError('Please specify a registration token.');
    return null;
  }
  return {
    auth: {
      type: {{.AuthType}},
      session: {{.Session}},
      token: token
    }
  };
}
</script>
{{end}}
<script>
function setFormError(msg) {
  document.getElementById('error').innerText = msg;
}
function processResponse(xhr) {
  let r = JSON.parse(xhr.responseText);
  if (xhr.status == 200 || (r.completed && r.completed.includes({{.AuthType}}))) {
    if (window.onAuthDone) {
      window.onAuthDone();
    } else if (window.opener && window.opener.postMessage) {
      window.opener.postMessage('authDone', '*');
    } else {
      setFormError('Client error.');
    }
  } else if (r.session != {{.Session}}) {
    setFormError('Invalid session.');
  } else {
    setFormError('Invalid credentials.');
  }
}
document.getElementById('auth-form').addEventListener('submit', (e) => {
  e.preventDefault();
  let request = buildRequest();
  if (!request) {
    return;
  }
  let xhr = new XMLHttpRequest();
  xhr.open('POST', window.location.pathname);
  xhr.setRequestHeader('Content-Type', 'application/json');
  xhr.onload = () => processResponse(xhr);
  xhr.send(JSON.stringify(request));
});
</script>
</body>
</html>
`))

var fallbackTypes = map[string]bool{
	uia.StagePassword:          true,
	uia.StageRegistrationToken: true,
}

// Get renders the fallback page for a stage type.
func (h *UiaFallbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	authType := mux.Vars(r)["type"]
	if !fallbackTypes[authType] {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound, ""))
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrMissingParam, "'session' parameter is unset."))
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fallbackPage.Execute(w, struct {
		AuthType string
		Session  string
	}{AuthType: authType, Session: session})
}

// Post runs a single-stage flow of the page's type against the session.
func (h *UiaFallbackHandler) Post(w http.ResponseWriter, r *http.Request) {
	authType := mux.Vars(r)["type"]
	if !fallbackTypes[authType] {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound, ""))
		return
	}

	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	request, merr := decodeBody(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	flows := []uia.Flow{{{Type: authType}}}
	result, err := uia.Complete(h.db, cfg, flows, request)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}
	if !result.Completed {
		matrix.WriteJSON(w, result.Status, result.Response)
		return
	}
	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}
