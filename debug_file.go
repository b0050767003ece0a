// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lampnet

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// sessionLog mirrors every protocol event into a file, whether or not
// console debugging is on. Both node goroutines write to it.
type sessionLog struct {
	w    io.Writer
	file *os.File
	path string
	mu   sync.Mutex
}

var session sessionLog

const sessionStamp = "15:04:05.000"

// InitSessionLog opens lampnet_<date>_<time>.log in dir (the working
// directory when dir is empty) and returns its path. A log that is already
// open is closed first.
func InitSessionLog(dir string) (string, error) {
	name := fmt.Sprintf("lampnet_%s.log", time.Now().Format("20060102_150405"))
	if dir != "" {
		name = filepath.Join(dir, name)
	}
	f, err := os.Create(name) //nolint:gosec // name is built here from a timestamp
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.file != nil {
		_ = session.file.Close()
	}
	session.file, session.w, session.path = f, f, name
	writeSessionHeader(f)
	return name, nil
}

// CloseSessionLog writes the footer and closes the log. It is a no-op when
// no log is open.
func CloseSessionLog() error {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(session.w, "\n%s === session ended ===\n", time.Now().Format(sessionStamp))
	err := session.file.Close()
	session.file, session.w, session.path = nil, nil, ""
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open log's path, or "".
func GetSessionLogPath() string {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.path
}

// SessionNotef records a node-level event, such as the role and port a node
// started with. Notes go to the session log only.
func SessionNotef(format string, args ...any) {
	session.line("NOTE", fmt.Sprintf(format, args...))
}

func (s *sessionLog) line(level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return
	}
	_, _ = fmt.Fprintf(s.w, "%s %s: %s\n", time.Now().Format(sessionStamp), level, message)
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprint(w, "=== lampnet radio session ===\n")
	_, _ = fmt.Fprintf(w, "started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "pid:     %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "host:    %s/%s %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	_, _ = fmt.Fprintf(w, "command: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(w, "=============================\n\n")
}
