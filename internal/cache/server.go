package cache

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// Serve answers protocol requests on l using kv until l is closed.
func Serve(l net.Listener, kv Durable, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("accept", zap.Error(err))
			continue
		}
		go handleConn(conn, kv)
	}
}

func handleConn(conn net.Conn, kv Durable) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		switch req.Op {
		case "get":
			e, err := kv.Get(req.Key)
			if err != nil {
				_ = enc.Encode(Response{OK: false, Error: err.Error()})
				continue
			}
			_ = enc.Encode(Response{OK: true, Value: e.Payload, StoredAt: e.StoredAt.UnixNano()})
		case "put":
			e := Entry{Payload: req.Value, StoredAt: time.Unix(0, req.StoredAt)}
			if err := kv.Put(req.Key, e); err != nil {
				_ = enc.Encode(Response{OK: false, Error: err.Error()})
				continue
			}
			_ = enc.Encode(Response{OK: true})
		case "delete":
			if err := kv.Delete(req.Key); err != nil {
				_ = enc.Encode(Response{OK: false, Error: err.Error()})
				continue
			}
			_ = enc.Encode(Response{OK: true})
		case "clear":
			if err := kv.Clear(); err != nil {
				_ = enc.Encode(Response{OK: false, Error: err.Error()})
				continue
			}
			_ = enc.Encode(Response{OK: true})
		default:
			_ = enc.Encode(Response{OK: false, Error: "unknown op"})
		}
	}
}
