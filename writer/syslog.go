// FILE: lixenwraith/logpipe/writer/syslog.go
package writer

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

const (
	defaultSyslogPort = 514
	defaultIdent      = "logpipe"
	syslogTimeLayout  = "2006-01-02T15:04:05.000000Z07:00"
	syslogTimeout     = 5 * time.Second
)

var syslogFacilities = map[string]int{
	"kern": 0, "user": 1, "mail": 2, "daemon": 3, "auth": 4, "syslog": 5,
	"lpr": 6, "news": 7, "uucp": 8, "cron": 9, "authpriv": 10, "ftp": 11,
	"local0": 16, "local1": 17, "local2": 18, "local3": 19,
	"local4": 20, "local5": 21, "local6": 22, "local7": 23,
}

func syslogSeverity(l entry.Level) int {
	switch l {
	case entry.LevelError:
		return 3
	case entry.LevelWarn:
		return 4
	case entry.LevelInfo:
		return 6
	default:
		return 7
	}
}

// syslogWriter sends RFC 5424 messages over UDP, or TCP with octet counting
type syslogWriter struct {
	base
	link

	network  string
	address  string
	facility int
	ident    string
	hostname string
	pid      string

	conn  net.Conn
	frame []byte
}

func newSyslog(p props.Map, opts Options) (Writer, error) {
	w := &syslogWriter{pid: strconv.Itoa(os.Getpid()), ident: p.String("identification", defaultIdent)}
	var err error
	if w.base, err = newBase(p, opts, "{message}"); err != nil {
		return nil, err
	}

	switch proto := strings.ToLower(p.String("protocol", "udp")); proto {
	case "udp", "tcp":
		w.network = proto
	default:
		return nil, props.Errorf("protocol", "invalid protocol '%s' (use udp or tcp)", proto)
	}
	port, err := p.Int("port", defaultSyslogPort)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, props.Errorf("port", "port %d out of range", port)
	}
	w.address = net.JoinHostPort(p.String("host", "localhost"), strconv.Itoa(port))

	facility := strings.ToLower(p.String("facility", "user"))
	var ok bool
	if w.facility, ok = syslogFacilities[facility]; !ok {
		return nil, props.Errorf("facility", "unknown facility '%s'", facility)
	}
	if w.hostname, err = os.Hostname(); err != nil || w.hostname == "" {
		w.hostname = "-"
	}
	reconnect, err := p.Bool("reconnect", true)
	if err != nil {
		return nil, err
	}

	w.link = newLink(opts, reconnect, w.connect, w.disconnect)
	return w, nil
}

func (w *syslogWriter) connect() error {
	conn, err := net.DialTimeout(w.network, w.address, syslogTimeout)
	if err != nil {
		return err
	}
	w.conn = conn
	return nil
}

func (w *syslogWriter) disconnect() error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *syslogWriter) RequiredValues() entry.Values {
	return w.base.RequiredValues() | entry.ValueDate
}

// appendFrame appends "<PRI>1 TIMESTAMP HOST APP PID - - MSG"
func (w *syslogWriter) appendFrame(buf []byte, e *entry.Entry) []byte {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = w.opts.Now()
	}
	buf = append(buf, '<')
	buf = strconv.AppendInt(buf, int64(w.facility*8+syslogSeverity(e.Level)), 10)
	buf = append(buf, ">1 "...)
	buf = ts.AppendFormat(buf, syslogTimeLayout)
	buf = append(buf, ' ')
	buf = append(buf, w.hostname...)
	buf = append(buf, ' ')
	buf = append(buf, w.ident...)
	buf = append(buf, ' ')
	buf = append(buf, w.pid...)
	buf = append(buf, " - - "...)
	return w.appendEntry(buf, e)
}

func (w *syslogWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}

	w.lock()
	defer w.unlock()
	ok, err := w.ready()
	if err != nil {
		return err
	}
	if !ok {
		w.drop(1)
		return nil
	}

	msg := w.appendFrame(w.frame[:0], e)
	if w.network == "tcp" {
		// Octet counting: "<len> <msg>"
		framed := strconv.AppendInt(make([]byte, 0, len(msg)+8), int64(len(msg)), 10)
		framed = append(framed, ' ')
		msg = append(framed, msg...)
	}
	w.frame = msg[:0]

	start := w.opts.Now()
	_ = w.conn.SetWriteDeadline(time.Now().Add(syslogTimeout))
	if _, err := w.conn.Write(msg); err != nil {
		return w.failed(err, 1, w.opts.Now().Sub(start))
	}
	return nil
}

func (w *syslogWriter) Flush() error {
	return nil
}

func (w *syslogWriter) Close() error {
	w.lock()
	defer w.unlock()
	return w.close()
}
