// bus.go
package bus

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Wildcards. "+" matches exactly one token, "#" matches the rest (zero or more)
// and is only meaningful as the last token of a subscription.
const (
	SingleWild = "+"
	MultiWild  = "#"
)

// Topic is a sequence of comparable tokens (usually strings, sometimes ints).
type Topic []any

// T builds a Topic. It panics on a non-comparable token because such a token
// can never be used as a trie key.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int { return len(t) }

// At returns token i or nil when out of range.
func (t Topic) At(i int) any {
	if i < 0 || i >= len(t) {
		return nil
	}
	return t[i]
}

// Append returns a new topic with extra tokens, leaving t untouched.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, tokens...)
}

func (t Topic) String() string {
	s := ""
	for i, tok := range t {
		if i > 0 {
			s += "/"
		}
		switch v := tok.(type) {
		case string:
			s += v
		case int:
			s += strconv.Itoa(v)
		default:
			s += "?"
		}
	}
	return s
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender asked for a reply.
func (m *Message) CanReply() bool { return m != nil && len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
	once  sync.Once
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus is an in-process topic trie. Subscriptions and retained messages share
// the trie: subscriptions sit at their (possibly wildcarded) pattern, retained
// messages at their concrete topic.
type Bus struct {
	mu     sync.RWMutex
	root   *node
	qLen   int
	nextID atomic.Uint64
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		root: &node{},
		qLen: queueLen,
	}
}

// NewMessage builds a message; it does not publish it.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	// Deliver every retained message the pattern matches.
	var retained []*Message
	collectRetained(b.root, sub.topic, &retained)
	for _, m := range retained {
		deliver(sub, m)
	}
}

// collectRetained walks concrete topics under n matching pattern.
func collectRetained(n *node, pattern Topic, out *[]*Message) {
	if n == nil {
		return
	}
	if len(pattern) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pattern[0] {
	case MultiWild:
		collectAll(n, out)
	case SingleWild:
		for tok, c := range n.children {
			if isWild(tok) {
				continue
			}
			collectRetained(c, pattern[1:], out)
		}
	default:
		collectRetained(n.children[pattern[0]], pattern[1:], out)
	}
}

func collectAll(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for tok, c := range n.children {
		if isWild(tok) {
			continue
		}
		collectAll(c, out)
	}
}

func isWild(tok any) bool { return tok == SingleWild || tok == MultiWild }

// matchSubs gathers subscriptions whose pattern matches topic.
func matchSubs(n *node, topic Topic, out *[]*Subscription) {
	if n == nil {
		return
	}
	if hash := n.children[MultiWild]; hash != nil {
		*out = append(*out, hash.subs...)
	}
	if len(topic) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	matchSubs(n.children[topic[0]], topic[1:], out)
	if plus := n.children[SingleWild]; plus != nil {
		matchSubs(plus, topic[1:], out)
	}
}

// deliver never blocks: when the queue is full the oldest message is dropped.
func deliver(sub *Subscription, msg *Message) {
	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// Publish delivers a message to all subscribers of its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.root
		if msg.Payload == nil {
			b.clearRetained(msg.Topic)
		} else {
			for _, tok := range msg.Topic {
				n = n.child(tok, true)
			}
			n.retained = msg
		}
	}

	var subs []*Subscription
	matchSubs(b.root, msg.Topic, &subs)
	for _, sub := range subs {
		deliver(sub, msg)
	}
}

// caller holds lock
func (b *Bus) clearRetained(topic Topic) {
	n := b.root
	stack := make([]*node, 0, len(topic))
	for _, tok := range topic {
		stack = append(stack, n)
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	n.retained = nil
	b.prune(topic, stack)
}

// caller holds lock
func (b *Bus) prune(topic Topic, stack []*node) {
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[topic[i]]
		if child == nil || !child.empty() {
			return
		}
		delete(parent.children, topic[i])
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	stack := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		stack = append(stack, n)
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	b.prune(sub.topic, stack)
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

func (c *Connection) ID() string { return c.id }

// NewMessage builds a message on the connection's bus.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	sub.once.Do(func() {
		c.bus.unsubscribe(sub)
		c.mu.Lock()
		for i, s := range c.subs {
			if s == sub {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		close(sub.ch)
	})
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := append([]*Subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		c.Unsubscribe(sub)
	}
}

// Reply publishes payload to the request's ReplyTo topic. It is a no-op when
// the request did not ask for a reply.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}

// Request assigns a unique ReplyTo, subscribes to it and publishes req.
// The caller owns the returned subscription.
func (c *Connection) Request(req *Message) *Subscription {
	id := int(c.bus.nextID.Add(1))
	req.ReplyTo = T("_reply", c.id, id)
	sub := c.Subscribe(req.ReplyTo)
	c.Publish(req)
	return sub
}

// RequestWait sends req and waits for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, req *Message) (*Message, error) {
	sub := c.Request(req)
	defer c.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
