package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vpittamp/i3pm-daemon/internal/log"
)

// watchdogInterval governs how often Serve checks that the socket path
// still points at this listener's inode — grounded on the trace2receiver
// collector's own periodic "has our socket been replaced" check, since a
// stale daemon restart racing a fresh one can otherwise silently steal the
// path out from under a running listener.
const watchdogInterval = 30 * time.Second

// Server is the daemon's JSON-RPC control plane: a line-delimited
// JSON-RPC 2.0 dispatcher bound to a Unix-domain socket.
type Server struct {
	path     string
	handler  *Handler
	mu       sync.Mutex
	listener *net.UnixListener
	inode    uint64
}

// New constructs a Server listening at path and dispatching to handler.
func New(path string, handler *Handler) *Server {
	return &Server{path: path, handler: handler}
}

// Serve opens the control socket and accepts connections until ctx is
// canceled, at which point it closes the listener and removes the socket
// file if it still owns it. Grounded on
// git-ecosystem-trace2receiver/rcvr_unixsocket.go's openSocketForListening/
// Shutdown shape: force-clear a stale path, refuse to auto-unlink on
// close, and watch for the path being stolen out from under the listener.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.open(); err != nil {
		return err
	}
	defer s.closeAndRemove()

	go s.watchdog(ctx)

	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn(log.CatRPC, "rpc accept failed", "error", err)
				return err
			}
		}
		log.SafeGo("rpc-conn", func() { s.serveConn(ctx, conn) })
	}
}

func (s *Server) open() error {
	_ = os.Remove(s.path)

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.path, Net: "unix"})
	if err != nil {
		return fmt.Errorf("rpc: listening on %s: %w", s.path, err)
	}
	l.SetUnlinkOnClose(false)

	inode, err := statInode(s.path)
	if err != nil {
		l.Close()
		return fmt.Errorf("rpc: stat-ing fresh socket %s: %w", s.path, err)
	}

	if err := os.Chmod(s.path, 0o666); err != nil {
		l.Close()
		return fmt.Errorf("rpc: chmod %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.listener = l
	s.inode = inode
	s.mu.Unlock()
	log.Info(log.CatRPC, "rpc control socket listening", "path", s.path)
	return nil
}

// watchdog periodically confirms s.path still refers to this listener's
// inode, and force-closes the listener on ctx cancellation so Serve's
// AcceptUnix loop unblocks promptly.
func (s *Server) watchdog(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.listener != nil {
				_ = s.listener.Close()
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			current, err := statInode(s.path)
			if err != nil || current != s.inode {
				log.Warn(log.CatRPC, "rpc control socket path no longer matches our listener", "path", s.path)
			}
		}
	}
}

func (s *Server) closeAndRemove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	_ = s.listener.Close()
	if current, err := statInode(s.path); err == nil && current == s.inode {
		_ = os.Remove(s.path)
	}
	s.listener = nil
}

func statInode(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, err
	}
	return st.Ino, nil
}

// serveConn reads newline-delimited JSON-RPC requests off conn until EOF,
// dispatching each to s.handler and writing back a newline-delimited
// response (notifications — requests with no id — get no response line).
func (s *Server) serveConn(ctx context.Context, conn *net.UnixConn) {
	peer := peerDescription(conn)
	log.Debug(log.CatRPC, "rpc connection accepted", "peer", peer)
	defer conn.Close()

	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-connDone:
		}
	}()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(ctx, writer, line)
			if err := writer.Flush(); err != nil {
				log.Warn(log.CatRPC, "rpc response flush failed", "peer", peer, "error", err)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleLine(ctx context.Context, w *bufio.Writer, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		resp := errorResponse(nil, fmt.Errorf("rpc: parsing request: %w", err))
		writeResponse(w, resp)
		return
	}

	resp := s.handler.Dispatch(ctx, req)
	if req.ID == nil {
		return // notification: no response line
	}
	writeResponse(w, resp)
}

func writeResponse(w *bufio.Writer, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(errorResponse(resp.ID, fmt.Errorf("rpc: marshaling response: %w", err)))
	}
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

// peerDescription resolves the connecting process's uid to a username via
// SO_PEERCRED, purely for diagnostic logging — the control socket's 0666
// permissions are the actual access boundary, not this lookup.
func peerDescription(conn *net.UnixConn) string {
	raw, err := conn.SyscallConn()
	if err != nil {
		return "unknown"
	}
	var cred *unix.Ucred
	var crederr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, crederr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil || crederr != nil || cred == nil {
		return "unknown"
	}
	if u, err := user.LookupId(strconv.FormatUint(uint64(cred.Uid), 10)); err == nil {
		return fmt.Sprintf("uid=%d user=%s pid=%d", cred.Uid, u.Username, cred.Pid)
	}
	return fmt.Sprintf("uid=%d pid=%d", cred.Uid, cred.Pid)
}
