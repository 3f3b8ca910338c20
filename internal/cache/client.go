package cache

import (
	"encoding/json"
	"errors"
	"net"
	"time"
)

// Client implements Durable over a Unix socket served by the cache daemon.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

func (c *Client) withConn(fn func(conn net.Conn) error) error {
	conn, err := net.DialTimeout("unix", c.socketPath, 500*time.Millisecond)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	return fn(conn)
}

func (c *Client) roundTrip(req Request) (Response, error) {
	var resp Response
	err := c.withConn(func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return err
		}
		return json.NewDecoder(conn).Decode(&resp)
	})
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, remoteError(resp.Error)
	}
	return resp, nil
}

func (c *Client) Get(key string) (Entry, error) {
	resp, err := c.roundTrip(Request{Op: "get", Key: key})
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Payload:  append([]byte(nil), resp.Value...),
		StoredAt: time.Unix(0, resp.StoredAt),
	}, nil
}

func (c *Client) Put(key string, e Entry) error {
	_, err := c.roundTrip(Request{Op: "put", Key: key, Value: e.Payload, StoredAt: e.StoredAt.UnixNano()})
	return err
}

func (c *Client) Delete(key string) error {
	_, err := c.roundTrip(Request{Op: "delete", Key: key})
	return err
}

func (c *Client) Clear() error {
	_, err := c.roundTrip(Request{Op: "clear"})
	return err
}

// remoteError maps daemon error strings back onto the package sentinels.
func remoteError(msg string) error {
	switch msg {
	case ErrNotFound.Error():
		return ErrNotFound
	case ErrTooLarge.Error():
		return ErrTooLarge
	case ErrCorrupt.Error():
		return ErrCorrupt
	}
	return errors.New(msg)
}
