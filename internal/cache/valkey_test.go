package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeValkey speaks just enough RESP for PING/GET/SET/DEL.
type fakeValkey struct {
	ln    net.Listener
	mu    sync.Mutex
	data  map[string]string
	conns int
}

func startFakeValkey(t *testing.T) *fakeValkey {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen unavailable: %v", err)
	}
	f := &fakeValkey{ln: ln, data: map[string]string{}}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeValkey) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns++
		f.mu.Unlock()
		go f.handle(conn)
	}
}

func (f *fakeValkey) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		f.mu.Lock()
		switch strings.ToUpper(args[0]) {
		case "PING":
			fmt.Fprint(conn, "+PONG\r\n")
		case "GET":
			if v, ok := f.data[args[1]]; ok {
				fmt.Fprintf(conn, "$%d\r\n%s\r\n", len(v), v)
			} else {
				fmt.Fprint(conn, "$-1\r\n")
			}
		case "SET":
			nx := strings.EqualFold(args[len(args)-1], "NX")
			if _, exists := f.data[args[1]]; nx && exists {
				fmt.Fprint(conn, "$-1\r\n")
			} else {
				f.data[args[1]] = args[2]
				fmt.Fprint(conn, "+OK\r\n")
			}
		case "DEL":
			delete(f.data, args[1])
			fmt.Fprint(conn, ":1\r\n")
		default:
			fmt.Fprint(conn, "-ERR unknown command\r\n")
		}
		f.mu.Unlock()
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, _ := strconv.Atoi(strings.TrimSpace(header[1:]))
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestValkeyProviderRoundTrip(t *testing.T) {
	srv := startFakeValkey(t)
	p, err := NewValkeyProvider(ValkeyConfig{Addr: srv.ln.Addr().String(), ReadTimeout: time.Second, WriteTimeout: time.Second})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := p.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q %v", got, err)
	}
	ok, err := p.SetNX(ctx, "k", []byte("other"), time.Minute)
	if err != nil || ok {
		t.Fatalf("expected SetNX to fail on existing key, ok=%v err=%v", ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}

	srv.mu.Lock()
	conns := srv.conns
	srv.mu.Unlock()
	if conns != 1 {
		t.Fatalf("expected pooled connection reuse, got %d dials", conns)
	}
}
