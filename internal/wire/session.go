// Package wire implements the BaseX-compatible binary client/server
// protocol: framing, digest login, and the command/query request-
// response exchanges that make up a session with the server.
package wire

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/baxend-go/baxend/internal/bxerr"
)

// Phase is the Session state machine position.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpened
	PhaseAuthenticated
	PhasePoisoned // a ProtocolError occurred; the session is unusable.
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpened:
		return "opened"
	case PhaseAuthenticated:
		return "authenticated"
	case PhasePoisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}

// Config carries the connection parameters needed to open a Session.
type Config struct {
	Address  string // host:port
	User     string
	Password string
	TLS      *tls.Config // nil for plaintext
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Session is a single authenticated connection to the server. All
// operations are serialized by mu: the session owns one socket, and
// overlapping commands would corrupt the wire protocol. Streamed
// operations hold mu for the life of the result stream.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	phase Phase
	conn  net.Conn
	codec *Codec
}

// NewSession constructs a Session in the closed phase. Call Open then
// Login before issuing any other operation.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Session{cfg: cfg, logger: logger, phase: PhaseClosed}
}

// Logger returns the session's logger, for components layered on top
// (such as internal/query) that want to log under the same sink.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Phase returns the current state machine position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Open dials the server. It does not perform login.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseClosed {
		return &bxerr.ProtocolError{Op: "open", Message: "session already open"}
	}

	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	if s.cfg.TLS != nil {
		conn = tls.Client(conn, s.cfg.TLS)
	}

	s.conn = conn
	s.codec = NewCodec(conn)
	s.phase = PhaseOpened
	s.logger.Debug("wire: opened", slog.String("addr", s.cfg.Address))
	return nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Login performs the realm/nonce digest exchange: the server sends
// "realm:nonce\0"; the client replies with the user name and
// md5(md5("user:realm:password") + nonce).
func (s *Session) Login() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseOpened {
		return &bxerr.ProtocolError{Op: "login", Message: "session not in opened phase"}
	}

	greeting, err := s.codec.RecvString()
	if err != nil {
		return s.poison("login", err)
	}
	realm, nonce, ok := strings.Cut(greeting, ":")
	if !ok {
		return s.poison("login", fmt.Errorf("malformed greeting %q", greeting))
	}

	digest := md5Hex(md5Hex(s.cfg.User+":"+realm+":"+s.cfg.Password) + nonce)
	s.codec.SendString(s.cfg.User)
	s.codec.SendString(digest)
	if err := s.codec.Flush(); err != nil {
		return s.poison("login", err)
	}

	status, err := s.codec.RecvByte()
	if err != nil {
		return s.poison("login", err)
	}
	if !s.codec.AreBuffersEmpty() {
		return s.poisonDesync("login")
	}

	switch status {
	case statusOK:
		s.phase = PhaseAuthenticated
		s.logger.Debug("wire: authenticated", slog.String("user", s.cfg.User))
		return nil
	case statusError:
		return &bxerr.AuthError{User: s.cfg.User}
	default:
		return s.poison("login", fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// Close closes the underlying socket. It does not send EXIT; callers
// that want a clean logout should issue Command("EXIT") first.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.phase = PhaseClosed
	return err
}

// poison transitions the session to PhasePoisoned and wraps err as a
// ProtocolError. Must be called with mu held.
func (s *Session) poison(op string, err error) error {
	s.phase = PhasePoisoned
	s.logger.Error("wire: protocol error", slog.String("op", op), slog.Any("err", err))
	return &bxerr.ProtocolError{Op: op, Message: err.Error()}
}

func (s *Session) poisonDesync(op string) error {
	desc := s.codec.Desync()
	s.phase = PhasePoisoned
	s.logger.Error("wire: buffers not empty after operation", slog.String("op", op), slog.String("state", desc))
	return &bxerr.ProtocolError{Op: op, Message: "garbage left in protocol buffers: " + desc}
}

func (s *Session) requireAuthenticated(op string) error {
	if s.phase != PhaseAuthenticated {
		return &bxerr.ProtocolError{Op: op, Message: "session not authenticated (phase=" + s.phase.String() + ")"}
	}
	return nil
}

// Command executes a server command string (e.g. "CHECK dbname",
// "LIST", "EXIT") and returns its result text.
func (s *Session) Command(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated("command"); err != nil {
		return "", err
	}

	s.logger.Debug("wire: command", slog.String("command", command))
	s.codec.SendString(command)
	if err := s.codec.Flush(); err != nil {
		return "", s.poison("command", err)
	}

	result, err := s.codec.RecvString()
	if err != nil {
		return "", s.poison("command", err)
	}
	info, err := s.codec.RecvString()
	if err != nil {
		return "", s.poison("command", err)
	}
	status, err := s.codec.RecvByte()
	if err != nil {
		return "", s.poison("command", err)
	}
	if !s.codec.AreBuffersEmpty() {
		return "", s.poisonDesync("command")
	}

	switch status {
	case statusOK:
		return result, nil
	case statusError:
		return "", &bxerr.CommandError{Op: "COMMAND", Info: info, Args: []string{command}}
	default:
		return "", s.poison("command", fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// mutation runs the shared shape of the CREATE/ADD/PUT family: opcode,
// string arguments, then an info string and a status byte. PutBinary
// uses mutationBytes instead for its raw payload argument.
func (s *Session) mutation(op string, opcode byte, args ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated(op); err != nil {
		return err
	}

	s.codec.SendByte(opcode)
	for _, a := range args {
		s.codec.SendString(a)
	}
	if err := s.codec.Flush(); err != nil {
		return s.poison(op, err)
	}

	info, err := s.codec.RecvString()
	if err != nil {
		return s.poison(op, err)
	}
	status, err := s.codec.RecvByte()
	if err != nil {
		return s.poison(op, err)
	}
	if !s.codec.AreBuffersEmpty() {
		return s.poisonDesync(op)
	}

	switch status {
	case statusOK:
		return nil
	case statusError:
		return &bxerr.CommandError{Op: op, Info: info, Args: args}
	default:
		return s.poison(op, fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// CreateDB creates a new database named name, optionally seeded with
// input (opcode 0x08).
func (s *Session) CreateDB(name, input string) error {
	return s.mutation("CREATE", opCreateDB, name, input)
}

// Add adds a new document to the currently open database (opcode 0x09).
func (s *Session) Add(name, path, input string) error {
	return s.mutation("ADD", opAdd, name, path, input)
}

// Put adds or replaces an XML document resource (opcode 0x0C).
func (s *Session) Put(path, input string) error {
	return s.mutation("PUT", opPut, path, input)
}

// PutBinary uploads a binary resource (opcode 0x0D, distinct from Add,
// with a trailing zero byte after the raw payload).
func (s *Session) PutBinary(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated("PUTBINARY"); err != nil {
		return err
	}

	s.codec.SendByte(opPutBinary)
	s.codec.SendString(path)
	s.codec.SendBytes(data)
	s.codec.SendByte(0x00)
	if err := s.codec.Flush(); err != nil {
		return s.poison("PUTBINARY", err)
	}

	info, err := s.codec.RecvString()
	if err != nil {
		return s.poison("PUTBINARY", err)
	}
	status, err := s.codec.RecvByte()
	if err != nil {
		return s.poison("PUTBINARY", err)
	}
	if !s.codec.AreBuffersEmpty() {
		return s.poisonDesync("PUTBINARY")
	}

	switch status {
	case statusOK:
		return nil
	case statusError:
		return &bxerr.CommandError{Op: "PUTBINARY", Info: info, Args: []string{path}}
	default:
		return s.poison("PUTBINARY", fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// QueryCreate registers query text on the server and returns its id
// (opcode 0x00).
func (s *Session) QueryCreate(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated("QUERY"); err != nil {
		return "", err
	}

	s.logger.Debug("wire: query create", slog.String("query", text))
	s.codec.SendByte(opQueryCreate)
	s.codec.SendString(text)
	if err := s.codec.Flush(); err != nil {
		return "", s.poison("QUERY", err)
	}

	id, err := s.codec.RecvString()
	if err != nil {
		return "", s.poison("QUERY", err)
	}
	status, err := s.codec.RecvByte()
	if err != nil {
		return "", s.poison("QUERY", err)
	}
	if !s.codec.AreBuffersEmpty() {
		return "", s.poisonDesync("QUERY")
	}

	switch status {
	case statusOK:
		return id, nil
	case statusError:
		return "", &bxerr.QueryError{Op: "QUERY", Info: "error creating XQuery", Source: text}
	default:
		return "", s.poison("QUERY", fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// idOnly is the shared shape of Close/Execute/Info/Options/Updating:
// send the opcode and the id, get back a result string then status.
func (s *Session) idOnly(op string, opcode byte, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated(op); err != nil {
		return "", err
	}

	s.codec.SendByte(opcode)
	s.codec.SendString(id)
	if err := s.codec.Flush(); err != nil {
		return "", s.poison(op, err)
	}

	result, err := s.codec.RecvString()
	if err != nil {
		return "", s.poison(op, err)
	}
	status, err := s.codec.RecvByte()
	if err != nil {
		return "", s.poison(op, err)
	}

	switch status {
	case statusOK:
		if !s.codec.AreBuffersEmpty() {
			return "", s.poisonDesync(op)
		}
		return result, nil
	case statusError:
		info, err := s.codec.RecvString()
		if err != nil {
			return "", s.poison(op, err)
		}
		if !s.codec.AreBuffersEmpty() {
			return "", s.poisonDesync(op)
		}
		return "", &bxerr.QueryError{Op: op, Info: info, QueryID: id}
	default:
		return "", s.poison(op, fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// QueryClose closes and unregisters a query (opcode 0x02). The result
// string ("info") is discarded like the original client discards it.
func (s *Session) QueryClose(id string) error {
	_, err := s.idOnly("CLOSE", opQueryClose, id)
	return err
}

// QueryExecute executes the query and returns its result as one string
// (opcode 0x05).
func (s *Session) QueryExecute(id string) (string, error) {
	return s.idOnly("EXECUTE", opQueryExecute, id)
}

// QueryInfo returns compilation/profiling info (opcode 0x06).
func (s *Session) QueryInfo(id string) (string, error) {
	return s.idOnly("INFO", opQueryInfo, id)
}

// QueryOptions returns serialization parameters (opcode 0x07).
func (s *Session) QueryOptions(id string) (string, error) {
	return s.idOnly("OPTIONS", opQueryOptions, id)
}

// QueryUpdating reports "true"/"false" for whether the query contains
// updating expressions (opcode 0x1E).
func (s *Session) QueryUpdating(id string) (bool, error) {
	result, err := s.idOnly("UPDATING", opQueryUpdating, id)
	if err != nil {
		return false, err
	}
	return result == "true", nil
}

// bindLike is the shared shape of Bind/Context: an extra leading zero
// byte precedes the status byte on every response, success or error.
func (s *Session) bindLike(op string, opcode byte, id string, args ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthenticated(op); err != nil {
		return err
	}

	s.codec.SendByte(opcode)
	s.codec.SendString(id)
	for _, a := range args {
		s.codec.SendString(a)
	}
	if err := s.codec.Flush(); err != nil {
		return s.poison(op, err)
	}

	zero, err := s.codec.RecvByte()
	if err != nil {
		return s.poison(op, err)
	}
	if zero != 0x00 {
		return s.poison(op, fmt.Errorf("expected leading zero byte, got 0x%02x", zero))
	}

	status, err := s.codec.RecvByte()
	if err != nil {
		return s.poison(op, err)
	}

	switch status {
	case statusOK:
		if !s.codec.AreBuffersEmpty() {
			return s.poisonDesync(op)
		}
		return nil
	case statusError:
		info, err := s.codec.RecvString()
		if err != nil {
			return s.poison(op, err)
		}
		if !s.codec.AreBuffersEmpty() {
			return s.poisonDesync(op)
		}
		return &bxerr.QueryError{Op: op, Info: info, QueryID: id}
	default:
		return s.poison(op, fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// QueryBind binds value to an external variable. typ may be empty, in
// which case the server infers the type (opcode 0x03).
func (s *Session) QueryBind(id, name, value, typ string) error {
	return s.bindLike("BIND", opQueryBind, id, name, value, typ)
}

// QueryContext binds the dynamic context (opcode 0x0E).
func (s *Session) QueryContext(id, value, typ string) error {
	return s.bindLike("CONTEXT", opQueryContext, id, value, typ)
}

// Item is one streamed result entry: its XDM typeid, optional XDM
// metadata string (only present for Full streams and only for typeids
// 12, 14 and 82), and its serialized value.
type Item struct {
	TypeID byte
	XDM    string // empty unless this item carries metadata
	Value  string
}

// streamResults implements the shared shape of Results (opcode 0x04)
// and Full (opcode 0x1F): send the opcode and id, then read
// (typeid, [xdm], value) tuples until a zero typeid, then a status.
// The caller already holds s.mu (acquired by the exported entry point)
// for the entire duration of the stream.
func (s *Session) streamResults(op string, opcode byte, id string, full bool, yield func(Item) error) error {
	if err := s.requireAuthenticated(op); err != nil {
		return err
	}

	s.codec.SendByte(opcode)
	s.codec.SendString(id)
	if err := s.codec.Flush(); err != nil {
		return s.poison(op, err)
	}

	for {
		typeid, err := s.codec.RecvByte()
		if err != nil {
			return s.poison(op, err)
		}
		if typeid == 0x00 {
			break
		}

		item := Item{TypeID: typeid}
		if full && hasFullMetadata(typeid) {
			xdm, err := s.codec.RecvString()
			if err != nil {
				return s.poison(op, err)
			}
			item.XDM = xdm
		}
		value, err := s.codec.RecvString()
		if err != nil {
			return s.poison(op, err)
		}
		item.Value = value

		if yield != nil {
			if err := yield(item); err != nil {
				// Drain the rest of the stream so the wire stays in
				// sync even though the caller abandoned consumption.
				s.drainStream(op, full)
				return err
			}
		}
	}

	status, err := s.codec.RecvByte()
	if err != nil {
		return s.poison(op, err)
	}

	switch status {
	case statusOK:
		if !s.codec.AreBuffersEmpty() {
			return s.poisonDesync(op)
		}
		return nil
	case statusError:
		info, err := s.codec.RecvString()
		if err != nil {
			return s.poison(op, err)
		}
		if !s.codec.AreBuffersEmpty() {
			return s.poisonDesync(op)
		}
		return &bxerr.QueryError{Op: op, Info: info, QueryID: id}
	default:
		return s.poison(op, fmt.Errorf("unexpected status byte 0x%02x", status))
	}
}

// drainStream consumes the remainder of an abandoned stream, including
// the closing status byte and any error info, so the session's buffers
// stay synchronized. Best-effort: any error here
// poisons the session, since there is no way to recover desync.
func (s *Session) drainStream(op string, full bool) {
	for {
		typeid, err := s.codec.RecvByte()
		if err != nil {
			s.poison(op, err)
			return
		}
		if typeid == 0x00 {
			status, err := s.codec.RecvByte()
			if err != nil {
				s.poison(op, err)
				return
			}
			if status == statusError {
				if _, err := s.codec.RecvString(); err != nil {
					s.poison(op, err)
				}
			}
			return
		}
		if full && hasFullMetadata(typeid) {
			if _, err := s.codec.RecvString(); err != nil {
				s.poison(op, err)
				return
			}
		}
		if _, err := s.codec.RecvString(); err != nil {
			s.poison(op, err)
			return
		}
	}
}

// QueryResults streams the (typeid, value) results of id, calling yield
// for each item, holding the session mutex for the whole stream so
// callers can consume lazily under the lock. If yield returns a
// non-nil error, the remainder of the stream is drained and that error
// is returned.
func (s *Session) QueryResults(id string, yield func(Item) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamResults("RESULTS", opQueryResults, id, false, yield)
}

// QueryFull streams the (typeid, xdm, value) results of id (opcode
// 0x1F).
func (s *Session) QueryFull(id string, yield func(Item) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamResults("FULL", opQueryFull, id, true, yield)
}
