package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/session"
)

type uploadResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// uploadMedia posts body to the board's media endpoint and returns the public URL.
func uploadMedia(ctx context.Context, hc *http.Client, baseURL, token string, boardID uuid.UUID, name string, body io.Reader) (uploadResult, error) {
	u := strings.TrimRight(baseURL, "/") + "/v1/boards/" + boardID.String() + "/media/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return uploadResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := hc.Do(req)
	if err != nil {
		return uploadResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&e)
		return uploadResult{}, fmt.Errorf("upload: status %d: %s", resp.StatusCode, e.Error)
	}
	var out uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uploadResult{}, fmt.Errorf("upload: decode response: %w", err)
	}
	return out, nil
}

// cmdUpload stores a file as board media and places an image node showing it.
func (a *app) cmdUpload(ctx context.Context, args []string) error {
	fs := newFlags("upload")
	var board uuidFlag
	fs.Var(&board, "board", "board id")
	file := fs.String("file", "", "file to upload")
	name := fs.String("name", "", "object name (default: file base name)")
	x := fs.Float64("x", 0, "x")
	y := fs.Float64("y", 0, "y")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("need -file")
	}
	if *name == "" {
		*name = filepath.Base(*file)
	}
	tf, err := loadToken()
	if err != nil {
		return err
	}
	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := uploadMedia(ctx, &http.Client{Timeout: 2 * time.Minute}, a.httpURL, tf.AccessToken, board.id, *name, f)
	if err != nil {
		return err
	}
	return a.withSession(ctx, board, func(s *session.Session) error {
		n, err := s.Canvas().CreateNode(model.ImagePayload{URL: res.URL, Caption: *name}, model.Point{X: *x, Y: *y})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s\n", n.ID, res.URL)
		return nil
	})
}
