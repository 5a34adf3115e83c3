// Package server exposes dictation over WebSocket.
//
// One connection carries one utterance. The client streams binary messages
// of PCM16LE audio and may send the text control message {"type":"stop"} to
// end capture. Audio is 16 kHz mono unless the query parameters "rate" and
// "channels" declare another format, which is then converted on arrival.
// With "codec=opus" every binary message is one Opus packet instead.
// The server answers with JSON events:
//
//	{"type":"amplitude","level":0.12}
//	{"type":"partial","text":"hello wor"}
//	{"type":"stopped"}
//	{"type":"final","text":"Hello world."}
//	{"type":"error","text":"session: capture: audio: device error: ..."}
//
// The connection is closed after the terminal final or error event. Losing
// the connection mid-utterance is reported to the session as an audio device
// failure.
//
// When a transcript history is configured, GET /v1/transcripts returns the
// most recent outcomes, filtered by the optional "q" search parameter.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/internal/session"
	"github.com/MrWong99/voxkey/pkg/audio"
	"github.com/MrWong99/voxkey/pkg/audio/opus"
	"github.com/MrWong99/voxkey/pkg/history"
)

// Event types sent to clients.
const (
	EventPartial   = "partial"
	EventFinal     = "final"
	EventError     = "error"
	EventStopped   = "stopped"
	EventAmplitude = "amplitude"
)

// ControlStop is the only control message type accepted from clients.
const ControlStop = "stop"

// Codecs accepted in the "codec" query parameter.
const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

const (
	defaultQueue        = 64
	defaultWriteTimeout = 5 * time.Second
	maxMessageBytes     = 1 << 20
)

// Event is a server-to-client message.
type Event struct {
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Level *float64 `json:"level,omitempty"`
}

// Control is a client-to-server text message.
type Control struct {
	Type string `json:"type"`
}

// Dictation starts recognition sessions. *app.Service satisfies it.
type Dictation interface {
	StartSession(ctx context.Context, src audio.Source, l session.Listener) (*session.Session, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Default: the request's trace-aware logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithOriginPatterns allows cross-origin clients whose Origin host matches
// one of the patterns. Without it only same-origin browsers and non-browser
// clients can connect.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

// WithAmplitude toggles amplitude events. Default: on.
func WithAmplitude(on bool) Option {
	return func(s *Server) { s.amplitude = on }
}

// WithWriteTimeout bounds a single event write. Default: 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithHistory serves the transcript log on GET /v1/transcripts.
func WithHistory(store history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithResampleQuality selects the resampler for PCM clients that declare
// another rate than 16 kHz. Default: audio.QualityFast.
func WithResampleQuality(q audio.Quality) Option {
	return func(s *Server) {
		if q.IsValid() {
			s.resample = q
		}
	}
}

// Server upgrades HTTP requests to dictation connections.
type Server struct {
	svc          Dictation
	history      history.Store
	log          *slog.Logger
	origins      []string
	amplitude    bool
	writeTimeout time.Duration
	resample     audio.Quality
}

// New creates a [Server] backed by svc.
func New(svc Dictation, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		amplitude:    true,
		writeTimeout: defaultWriteTimeout,
		resample:     audio.QualityFast,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the dictation route, and the history route when a store is
// set, to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /v1/dictate", s)
	if s.history != nil {
		mux.HandleFunc("GET /v1/transcripts", s.transcripts)
	}
}

// ServeHTTP handles one dictation connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseInput(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		slog.Warn("server: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	ctx := r.Context()
	log := s.log
	if log == nil {
		log = observe.Logger(ctx)
	}
	log = log.With("remote", r.RemoteAddr)
	c := &client{conn: conn, log: log, timeout: s.writeTimeout}

	src := newRemoteSource(defaultQueue)
	sess, err := s.svc.StartSession(ctx, src, c.listener(s.amplitude))
	if err != nil {
		log.Warn("server: start session failed", "err", err)
		c.send(ctx, Event{Type: EventError, Text: err.Error()})
		conn.Close(websocket.StatusTryAgainLater, "session not started")
		return
	}
	log = log.With("session_id", sess.ID())
	log.Info("server: dictation started", "codec", in.codec, "rate", in.format.SampleRate, "channels", in.format.Channels)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readLoop(ctx, conn, src, in.dec, log)
	}()

	<-sess.Done()
	text, err := sess.Result()
	if err != nil {
		log.Info("server: dictation failed", "err", err)
	} else {
		log.Info("server: dictation finished", "chars", len(text))
	}
	conn.Close(websocket.StatusNormalClosure, "done")
	<-readDone
}

// readLoop forwards client messages to src until the connection ends.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, src *remoteSource, dec decoder, log *slog.Logger) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				src.finish(nil)
			default:
				src.finish(fmt.Errorf("server: connection lost: %w: %w", audio.ErrDevice, err))
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			pcm, err := dec.Decode(data)
			if err != nil {
				log.Warn("server: undecodable audio message", "bytes", len(data), "err", err)
				continue
			}
			if len(pcm) == 0 {
				continue
			}
			if !src.push(ctx, pcm) {
				log.Debug("server: audio after end of capture dropped", "bytes", len(pcm))
			}
		case websocket.MessageText:
			var ctl Control
			if err := json.Unmarshal(data, &ctl); err != nil {
				log.Warn("server: malformed control message", "err", err)
				continue
			}
			if ctl.Type != ControlStop {
				log.Warn("server: unknown control message", "type", ctl.Type)
				continue
			}
			log.Debug("server: stop requested")
			src.finish(nil)
		}
	}
}

// decoder turns one binary message into 16 kHz mono PCM16LE.
type decoder interface {
	Decode(msg []byte) ([]byte, error)
}

type pcmDecoder struct{ conv *audio.Converter }

func (d pcmDecoder) Decode(msg []byte) ([]byte, error) { return d.conv.Convert(msg) }

// input describes how a connection encodes its audio.
type input struct {
	codec  string
	format audio.Format
	dec    decoder
}

// parseInput reads the optional "codec", "rate" and "channels" query
// parameters. Opus packets carry their own format, so rate and channels
// are rejected with it.
func (s *Server) parseInput(r *http.Request) (input, error) {
	q := r.URL.Query()
	codec := q.Get("codec")
	switch codec {
	case "", CodecPCM:
		f, err := parseFormat(q.Get("rate"), q.Get("channels"))
		if err != nil {
			return input{}, err
		}
		conv, err := audio.NewConverter(f, audio.WithQuality(s.resample))
		if err != nil {
			return input{}, err
		}
		return input{codec: CodecPCM, format: f, dec: pcmDecoder{conv: conv}}, nil
	case CodecOpus:
		if q.Has("rate") || q.Has("channels") {
			return input{}, errors.New("rate and channels are not allowed with codec opus")
		}
		dec, err := opus.NewDecoder()
		if err != nil {
			return input{}, err
		}
		return input{codec: CodecOpus, format: audio.Mono16k, dec: dec}, nil
	default:
		return input{}, fmt.Errorf("unsupported codec %q", codec)
	}
}

func parseFormat(rate, channels string) (audio.Format, error) {
	f := audio.Mono16k
	if rate != "" {
		n, err := strconv.Atoi(rate)
		if err != nil {
			return f, fmt.Errorf("invalid rate %q", rate)
		}
		f.SampleRate = n
	}
	if channels != "" {
		n, err := strconv.Atoi(channels)
		if err != nil {
			return f, fmt.Errorf("invalid channels %q", channels)
		}
		f.Channels = n
	}
	return f, nil
}

// client writes events to one connection.
type client struct {
	conn    *websocket.Conn
	log     *slog.Logger
	timeout time.Duration
}

func (c *client) send(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, ev); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Debug("server: write event", "type", ev.Type, "err", err)
	}
}

// listener maps session callbacks to events. Callbacks run on the session's
// event goroutine, so writes are serialised.
func (c *client) listener(amplitude bool) session.Listener {
	ctx := context.Background()
	l := session.ListenerFuncs{
		Partial: func(text string) { c.send(ctx, Event{Type: EventPartial, Text: text}) },
		Final:   func(text string) { c.send(ctx, Event{Type: EventFinal, Text: text}) },
		Error:   func(err error) { c.send(ctx, Event{Type: EventError, Text: err.Error()}) },
		Stopped: func() { c.send(ctx, Event{Type: EventStopped}) },
	}
	if amplitude {
		l.Amplitude = func(level float64) {
			c.send(ctx, Event{Type: EventAmplitude, Level: &level})
		}
	}
	return l
}
