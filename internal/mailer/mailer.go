// internal/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-gomail/gomail"

	"github.com/outreachkit/outreach-backend/internal/model"
)

// Message is one fully-rendered outbound email.
type Message struct {
	From     string
	FromName string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
}

// Sender is the outbound mail transport used by the dispatcher. A Sender
// instance is owned by exactly one campaign dispatch: Verify once before
// the first batch, Close once after the last, on every exit path.
type Sender interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg *Message) error
	Close() error
}

const (
	defaultMaxConns   = 3
	defaultMaxPerConn = 10
	defaultTimeout    = 30 * time.Second
)

// Pool is a gomail-backed Sender that keeps up to maxConns SMTP
// connections warm and rotates each one out after maxPerConn messages.
type Pool struct {
	dial       func() (gomail.SendCloser, error)
	addr       string
	maxPerConn int
	timeout    time.Duration

	slots  chan struct{}
	mu     sync.Mutex
	idle   []*pooledConn
	closed bool
}

type pooledConn struct {
	sc   gomail.SendCloser
	sent int
}

type dialed struct {
	sc  gomail.SendCloser
	err error
}

// NewPool builds a connection pool from a sender profile. Nothing is
// dialed until Verify or the first Send.
func NewPool(profile *model.SenderProfile) *Pool {
	d := gomail.NewDialer(profile.SMTPHost, profile.SMTPPort, profile.SMTPUser, profile.SMTPPassword)
	d.SSL = profile.SMTPSecure
	return &Pool{
		dial:       d.Dial,
		addr:       fmt.Sprintf("%s:%d", profile.SMTPHost, profile.SMTPPort),
		maxPerConn: defaultMaxPerConn,
		timeout:    defaultTimeout,
		slots:      make(chan struct{}, defaultMaxConns),
	}
}

// Verify dials and closes one connection as a pre-flight check. A failure
// here means the whole campaign should abort before any record exists.
func (p *Pool) Verify(ctx context.Context) error {
	ch := make(chan dialed, 1)
	go func() {
		sc, err := p.dial()
		ch <- dialed{sc, err}
	}()
	select {
	case d := <-ch:
		if d.err != nil {
			return fmt.Errorf("smtp verify %s: %w", p.addr, d.err)
		}
		d.sc.Close()
		return nil
	case <-time.After(p.timeout):
		p.discardLateDial(ch)
		return fmt.Errorf("smtp verify %s: timed out after %s", p.addr, p.timeout)
	case <-ctx.Done():
		p.discardLateDial(ch)
		return ctx.Err()
	}
}

// discardLateDial closes the connection of a dial that was abandoned by
// Verify, once it eventually lands.
func (p *Pool) discardLateDial(ch <-chan dialed) {
	go func() {
		if d := <-ch; d.err == nil {
			d.sc.Close()
		}
	}()
}

// Send delivers one message over a pooled connection, bounded by the
// per-send timeout so a stuck recipient cannot stall the campaign.
func (p *Pool) Send(ctx context.Context, msg *Message) error {
	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From, msg.FromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			m.AddAlternative("text/html", msg.HTML)
		}
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	errc := make(chan error, 1)
	go func() { errc <- gomail.Send(conn.sc, m) }()

	select {
	case err = <-errc:
		p.release(conn, err)
	case <-time.After(p.timeout):
		err = fmt.Errorf("send to %s: timed out after %s", msg.To, p.timeout)
		p.abandon(conn, errc)
	case <-ctx.Done():
		err = ctx.Err()
		p.abandon(conn, errc)
	}
	return err
}

// abandon hands a connection whose send is still in flight off to a
// goroutine that closes it once the send returns. The slot stays held
// until then so the pool never exceeds its connection cap.
func (p *Pool) abandon(conn *pooledConn, errc <-chan error) {
	go func() {
		<-errc
		conn.sc.Close()
		<-p.slots
	}()
}

func (p *Pool) acquire(ctx context.Context) (*pooledConn, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, fmt.Errorf("mailer: pool is closed")
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	sc, err := p.dial()
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("smtp dial %s: %w", p.addr, err)
	}
	return &pooledConn{sc: sc}, nil
}

// release returns a healthy connection to the pool and discards one that
// errored or hit its message cap.
func (p *Pool) release(conn *pooledConn, sendErr error) {
	defer func() { <-p.slots }()

	conn.sent++
	if sendErr != nil || conn.sent >= p.maxPerConn {
		conn.sc.Close()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		conn.sc.Close()
		return
	}
	p.idle = append(p.idle, conn)
}

// Close shuts down every idle connection. Idempotent; a connection still
// in flight is discarded by release once its send returns.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, conn := range p.idle {
		if err := conn.sc.Close(); err != nil {
			log.Println("mailer: closing pooled connection:", err)
		}
	}
	p.idle = nil
	return nil
}

var _ Sender = (*Pool)(nil)
