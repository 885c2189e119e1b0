// Package events defines the event codes recorded in the ring buffer and the
// name table used to render them.
package events

import (
	"fmt"
	"strings"
)

// Code identifies an event. It is stored as a 32-bit signed integer so logs
// decode the same way on any platform.
type Code int32

// Version is stamped into LOG_START so that a decoder can tell which name
// table a log was written against. Bump it on any change to the built-in
// codes below.
const Version = 0

// Built-in codes. Application codes start at FirstApp.
const (
	None Code = iota
	BuildTimeUnixFormat
	CurrentTimeUTC
	LogStart
	LogStartAgain
	LogStop
	LogEntriesOverwritten
	LogTimeWrap
	LogFilesToUpload
	LogUploadStarting
	LogFileByteCount
	LogFileUploadCompleted
	LogUploadTaskCompleted
	LogFileOpen
	LogFileOpenFailure
	LogFileClose
	FileOpen
	FileOpenFailure
	FileClose
	FileDeleted
	FileDeleteFailure
	DirOpen
	DirOpenFailure
	DirSize
	DNSLookup
	DNSLookupFailure
	SocketOpening
	SocketOpeningFailure
	SocketOpened
	TCPConnecting
	TCPConnectFailure
	TCPConnected
	TCPConfigured
	TCPConfigurationFailure
	SendStart
	SendStop
	SendFailure
	SocketGoneBad
	SocketErrorsForTooLong
	TCPSendTimeout
	User0
	User1
	User2
	User3
	User4
	User5
	User6
	User7
	User8
	User9
	FirstApp
)

// builtinNames must stay in line with the codes above. By convention a "*"
// prefix marks something going wrong, which makes failures easy to spot in a
// dump.
var builtinNames = []string{
	"  EMPTY",
	"  BUILD_TIME_UNIX_FORMAT",
	"  CURRENT_TIME_UTC",
	"  LOG_START",
	"  LOG_START_AGAIN",
	"  LOG_STOP",
	"* LOG_ENTRIES_OVERWRITTEN",
	"  LOG_TIME_WRAP",
	"  LOG_FILES_TO_UPLOAD",
	"  LOG_UPLOAD_STARTING",
	"  LOG_FILE_BYTE_COUNT",
	"  LOG_FILE_UPLOAD_COMPLETED",
	"  LOG_UPLOAD_TASK_COMPLETED",
	"  LOG_FILE_OPEN",
	"* LOG_FILE_OPEN_FAILURE",
	"  LOG_FILE_CLOSE",
	"  FILE_OPEN",
	"* FILE_OPEN_FAILURE",
	"  FILE_CLOSE",
	"  FILE_DELETED",
	"* FILE_DELETE_FAILURE",
	"  DIR_OPEN",
	"* DIR_OPEN_FAILURE",
	"  DIR_SIZE",
	"  DNS_LOOKUP",
	"* DNS_LOOKUP_FAILURE",
	"  SOCKET_OPENING",
	"* SOCKET_OPENING_FAILURE",
	"  SOCKET_OPENED",
	"  TCP_CONNECTING",
	"* TCP_CONNECT_FAILURE",
	"  TCP_CONNECTED",
	"  TCP_CONFIGURED",
	"* TCP_CONFIGURATION_FAILURE",
	"  SEND_START",
	"  SEND_STOP",
	"* SEND_FAILURE",
	"* SOCKET_GONE_BAD",
	"* SOCKET_ERRORS_FOR_TOO_LONG",
	"* TCP_SEND_TIMEOUT",
	"  USER_0",
	"  USER_1",
	"  USER_2",
	"  USER_3",
	"  USER_4",
	"  USER_5",
	"  USER_6",
	"  USER_7",
	"  USER_8",
	"  USER_9",
}

// Table maps codes to display names. The zero value is empty; use Default.
type Table struct {
	version int
	names   []string
}

// Default returns the built-in table.
func Default() *Table {
	return &Table{version: Version, names: append([]string(nil), builtinNames...)}
}

// Extend returns a copy of t with application names appended after the
// existing codes. Names without a severity marker get the two-space pad.
func (t *Table) Extend(version int, names ...string) *Table {
	nt := &Table{version: version, names: make([]string, 0, len(t.names)+len(names))}
	nt.names = append(nt.names, t.names...)
	for _, n := range names {
		nt.names = append(nt.names, pad(n))
	}
	return nt
}

func pad(name string) string {
	if strings.HasPrefix(name, "* ") || strings.HasPrefix(name, "  ") {
		return name
	}
	if strings.HasPrefix(name, "*") {
		return "* " + strings.TrimLeft(name[1:], " ")
	}
	return "  " + name
}

// Len is the number of known codes.
func (t *Table) Len() int { return len(t.names) }

// Version is the table version, stamped into LOG_START.
func (t *Table) Version() int { return t.version }

// InRange reports whether c has a registered name.
func (t *Table) InRange(c Code) bool { return c >= 0 && int(c) < len(t.names) }

// Name returns the padded display name of c, or "" when out of range.
func (t *Table) Name(c Code) string {
	if !t.InRange(c) {
		return ""
	}
	return t.names[c]
}

// Lookup finds a code by bare name ("LOG_START"), ignoring the severity pad.
func (t *Table) Lookup(name string) (Code, bool) {
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "*"))
	for i, n := range t.names {
		if strings.TrimSpace(strings.TrimPrefix(n, "*")) == name {
			return Code(i), true
		}
	}
	return 0, false
}

// Bare returns the name of c without the severity pad.
func (t *Table) Bare(c Code) string {
	return strings.TrimSpace(strings.TrimPrefix(t.Name(c), "*"))
}

func (c Code) String() string {
	if n := Default().Bare(c); n != "" {
		return n
	}
	return fmt.Sprintf("EVENT(%d)", int32(c))
}
