// FILE: lixenwraith/logpipe/writer/logcat.go
package writer

import (
	"encoding/binary"
	"net"
	"os"
	"time"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
)

const (
	defaultLogdSocket = "/dev/socket/logdw"
	defaultLogcatTag  = "logpipe"

	// logd rejects payloads above 4068 bytes
	maxLogcatPayload = 4068
	logIDMain        = 0
)

func logcatPriority(l entry.Level) byte {
	switch l {
	case entry.LevelTrace:
		return 2
	case entry.LevelDebug:
		return 3
	case entry.LevelInfo:
		return 4
	case entry.LevelWarn:
		return 5
	default:
		return 6
	}
}

// logcatWriter sends entries to the Android log daemon as datagrams:
// log id, thread id, seconds and nanoseconds (little endian), then the
// priority byte, the NUL terminated tag and the NUL terminated message.
type logcatWriter struct {
	base
	link

	socket  string
	tagname *pattern.Pattern
	conn    net.Conn
	packet  []byte
}

func newLogcat(p props.Map, opts Options) (Writer, error) {
	w := &logcatWriter{socket: p.String("socket", defaultLogdSocket)}
	var err error
	if w.base, err = newBase(p, opts, "{message}"); err != nil {
		return nil, err
	}
	if w.tagname, err = pattern.Compile(p.String("tagname", "{tag}")); err != nil {
		return nil, props.Errorf("tagname", "%v", err)
	}
	reconnect, err := p.Bool("reconnect", true)
	if err != nil {
		return nil, err
	}

	w.link = newLink(opts, reconnect, w.connect, w.disconnect)
	return w, nil
}

func (w *logcatWriter) connect() error {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: w.socket, Net: "unixgram"})
	if err != nil {
		return err
	}
	w.conn = conn
	return nil
}

func (w *logcatWriter) disconnect() error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *logcatWriter) RequiredValues() entry.Values {
	return w.base.RequiredValues() | w.tagname.RequiredValues() | entry.ValueDate | entry.ValueThread
}

func (w *logcatWriter) appendPacket(buf []byte, e *entry.Entry) []byte {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = w.opts.Now()
	}
	tid := int64(os.Getpid())
	if e.Thread != nil && e.Thread.ID != 0 {
		tid = e.Thread.ID
	}

	buf = append(buf, logIDMain)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(tid))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ts.Unix()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ts.Nanosecond()))

	start := len(buf)
	buf = append(buf, logcatPriority(e.Level))
	tag := w.tagname.RenderString(e)
	if tag == "" {
		tag = defaultLogcatTag
	}
	buf = append(buf, tag...)
	buf = append(buf, 0)
	buf = w.appendEntry(buf, e)
	if len(buf)-start+1 > maxLogcatPayload {
		buf = buf[:start+maxLogcatPayload-1]
	}
	return append(buf, 0)
}

func (w *logcatWriter) Write(e *entry.Entry) error {
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

	w.packet = w.appendPacket(w.packet[:0], e)
	start := w.opts.Now()
	_ = w.conn.SetWriteDeadline(time.Now().Add(syslogTimeout))
	if _, err := w.conn.Write(w.packet); err != nil {
		return w.failed(err, 1, w.opts.Now().Sub(start))
	}
	return nil
}

func (w *logcatWriter) Flush() error {
	return nil
}

func (w *logcatWriter) Close() error {
	w.lock()
	defer w.unlock()
	return w.close()
}
