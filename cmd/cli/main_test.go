package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "brainboard")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	_ = withTmpConfig(t)
	got := cfgDir()
	base := os.Getenv("XDG_CONFIG_HOME") + "/brainboard"
	if got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	uid := uuid.Must(uuid.NewV4())
	if err := saveToken(tokenFile{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute), UserID: uid, Username: "ann"}); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tf, err := loadToken()
	if err != nil || tf.AccessToken != "tok" || tf.UserID != uid || tf.Username != "ann" {
		t.Fatalf("loadToken: %+v err=%v", tf, err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", st, err)
	}
	if err := saveToken(tokenFile{AccessToken: "tok2", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := &app{out: &buf}
	a.printJSON(map[string]any{"a": 1})

	var m map[string]any
	if json.Unmarshal(buf.Bytes(), &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_parseRole(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]model.Role{"editor": model.RoleEditor, " Viewer ": model.RoleViewer} {
		got, err := parseRole(in)
		if err != nil || got != want {
			t.Fatalf("parseRole(%q)=%q,%v", in, got, err)
		}
	}
	if _, err := parseRole("owner"); err == nil {
		t.Fatalf("owner invites must be rejected")
	}
}

func Test_uuidFlag_And_needIDs(t *testing.T) {
	t.Parallel()
	var a, b uuidFlag
	if err := a.Set("nope"); err == nil {
		t.Fatalf("bad uuid accepted")
	}
	id := uuid.Must(uuid.NewV4())
	if err := a.Set(id.String()); err != nil || a.id != id {
		t.Fatalf("Set: %v", err)
	}
	err := needIDs([]string{"board", "node"}, &a, &b)
	if err == nil || err.Error() != "need -node" {
		t.Fatalf("needIDs: %v", err)
	}
}

func Test_buildPayload(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind string
		want model.NodeKind
	}{
		{"note", model.KindNote},
		{"link", model.KindLink},
		{"image", model.KindImage},
		{"video", model.KindVideo},
		{"checklist", model.KindChecklist},
		{"pomodoro", model.KindPomodoro},
	}
	for _, tc := range cases {
		p, err := buildPayload(tc.kind, "<p>x</p>", "https://example.com/a.png", "t", "dQw4w9WgXcQ")
		if err != nil || p.Kind() != tc.want {
			t.Fatalf("%s: %v %v", tc.kind, p, err)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("%s: invalid payload: %v", tc.kind, err)
		}
	}
	if _, err := buildPayload("sticker", "", "", "", ""); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

func Test_parseEntities(t *testing.T) {
	t.Parallel()
	got := parseEntities(" node, cursor ,,")
	if len(got) != 2 || got[0] != model.EntityNode || got[1] != model.EntityCursor {
		t.Fatalf("parseEntities: %v", got)
	}
	if parseEntities("") != nil {
		t.Fatalf("empty list should be nil")
	}
}

func Test_uploadMedia(t *testing.T) {
	t.Parallel()
	board := uuid.Must(uuid.NewV4())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/v1/boards/"+board.String()+"/media/my cat.png" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(uploadResult{Path: "p", URL: "http://cdn/p", Size: int64(len(body))})
	}))
	defer srv.Close()

	res, err := uploadMedia(context.Background(), srv.Client(), srv.URL+"/", "T", board, "my cat.png", strings.NewReader("meow"))
	if err != nil || res.URL != "http://cdn/p" || res.Size != 4 {
		t.Fatalf("uploadMedia: %+v %v", res, err)
	}
	_, err = uploadMedia(context.Background(), srv.Client(), srv.URL, "bad", board, "x", strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("want 401 error, got %v", err)
	}
}

func Test_run_UnknownAndVersion(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := &app{out: &buf}
	if err := a.run(context.Background(), []string{"version"}); err != nil || !strings.HasPrefix(buf.String(), "bb ") {
		t.Fatalf("version: %q %v", buf.String(), err)
	}
	if err := a.run(context.Background(), []string{"dance"}); err == nil {
		t.Fatalf("unknown command accepted")
	}
}

func Test_run_ValidatesBeforeDialing(t *testing.T) {
	_ = withTmpConfig(t)
	a := &app{out: io.Discard}
	if err := a.run(context.Background(), []string{"register", "-u", "x"}); err == nil || err.Error() != "need -u and -p" {
		t.Fatalf("register: %v", err)
	}
	if err := a.run(context.Background(), []string{"board", "ls"}); err == nil || !strings.Contains(err.Error(), "login") {
		t.Fatalf("board ls without token: %v", err)
	}
	if err := a.run(context.Background(), []string{"node", "move", "-board", uuid.Must(uuid.NewV4()).String()}); err == nil || err.Error() != "need -node" {
		t.Fatalf("node move: %v", err)
	}
}
