package mq

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// topicCallback is invoked once per matching subscription when an inbound
// PUBLISH is dispatched. It is the topic tree's low-level primitive; the
// public surface wraps it to build a Message and call a MessageHandler.
type topicCallback func(topic string, payload []byte, qos uint8, retain, dup bool)

// topicSubscription is owned by exactly one topicNode.
type topicSubscription struct {
	filter   string
	qos      uint8
	callback topicCallback
	cleanup  func()
}

// topicNode is one segment of a '/'-delimited topic filter. The root node
// has an empty segment and no subscription of its own.
type topicNode struct {
	segment  string
	children map[string]*topicNode
	sub      *topicSubscription
}

func newTopicNode(segment string) *topicNode {
	return &topicNode{segment: segment}
}

func (n *topicNode) isLeafless() bool {
	return n.sub == nil && len(n.children) == 0
}

// topicTree is a trie over subscription filters supporting the '+' and '#'
// MQTT wildcards. It dispatches inbound PUBLISH topics to every subscription
// whose filter matches, and is the sole owner of subscription lifetimes:
// replacing or removing a subscription runs its cleanup exactly once.
type topicTree struct {
	root *topicNode
}

func newTopicTree() *topicTree {
	return &topicTree{root: newTopicNode("")}
}

func splitFilter(filter string) []string {
	if filter == "" {
		return []string{""}
	}
	return strings.Split(filter, "/")
}

// validateFilter rejects a subscription filter whose wildcard placement
// violates MQTT-4.7.1-2/3: '#' must be the final level and alone in it; '+'
// must occupy a level by itself.
func validateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty topic filter", errProtocol)
	}
	if !utf8.ValidString(filter) {
		return fmt.Errorf("%w: topic filter is not valid UTF-8", errProtocol)
	}
	if strings.Contains(filter, "\x00") {
		return fmt.Errorf("%w: topic filter contains a null byte", errProtocol)
	}
	levels := splitFilter(filter)
	for i, level := range levels {
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: '+' must occupy an entire topic level", errProtocol)
		}
		if strings.Contains(level, "#") {
			if level != "#" {
				return fmt.Errorf("%w: '#' must occupy an entire topic level", errProtocol)
			}
			if i != len(levels)-1 {
				return fmt.Errorf("%w: '#' must be the last topic level", errProtocol)
			}
		}
	}
	return nil
}

// topicAction is one undoable primitive applied by a transaction: it
// created a node (undone by deleting it if still leafless), replaced or
// cleared a subscription (undone by restoring the previous one), or pruned
// a leafless node (undone by re-attaching it to its parent).
type topicAction struct {
	undo func()
}

// topicTxn batches the inserts/removes issued by a single SUBSCRIBE or
// UNSUBSCRIBE packet (which may name several filters) so that a mid-batch
// failure can be rolled back without leaving the tree partially mutated.
type topicTxn struct {
	tree    *topicTree
	actions []topicAction
}

func (t *topicTree) Begin() *topicTxn {
	return &topicTxn{tree: t}
}

// Insert walks (creating as needed) the path for filter and installs sub as
// its terminal subscription, running the previous subscription's cleanup
// (if any) after the swap is recorded for rollback.
func (tx *topicTxn) Insert(filter string, qos uint8, callback topicCallback, cleanup func()) error {
	if err := validateFilter(filter); err != nil {
		return err
	}
	levels := splitFilter(filter)
	node := tx.tree.root
	for _, level := range levels {
		child, ok := node.children[level]
		if !ok {
			child = newTopicNode(level)
			if node.children == nil {
				node.children = make(map[string]*topicNode)
			}
			node.children[level] = child
			parent := node
			seg := level
			tx.actions = append(tx.actions, topicAction{undo: func() {
				if c := parent.children[seg]; c != nil && c.isLeafless() {
					delete(parent.children, seg)
				}
			}})
		}
		node = child
	}

	prev := node.sub
	node.sub = &topicSubscription{filter: filter, qos: qos, callback: callback, cleanup: cleanup}
	tx.actions = append(tx.actions, topicAction{undo: func() {
		node.sub = prev
	}})
	if prev != nil && prev.cleanup != nil {
		prev.cleanup()
	}
	return nil
}

// Remove clears the subscription at filter's terminal node, if any, running
// its cleanup, then prunes any now-leafless ancestor chain.
func (tx *topicTxn) Remove(filter string) {
	levels := splitFilter(filter)
	node := tx.tree.root
	path := []*topicNode{node}
	for _, level := range levels {
		child, ok := node.children[level]
		if !ok {
			return
		}
		path = append(path, child)
		node = child
	}

	prev := node.sub
	if prev == nil {
		return
	}
	node.sub = nil
	tx.actions = append(tx.actions, topicAction{undo: func() {
		node.sub = prev
	}})
	if prev.cleanup != nil {
		prev.cleanup()
	}

	for i := len(path) - 1; i > 0; i-- {
		n, parent := path[i], path[i-1]
		if !n.isLeafless() {
			break
		}
		seg := n.segment
		delete(parent.children, seg)
		restored := n
		tx.actions = append(tx.actions, topicAction{undo: func() {
			if parent.children == nil {
				parent.children = make(map[string]*topicNode)
			}
			parent.children[seg] = restored
		}})
	}
}

// Commit discards the undo log; the mutations already applied stand.
func (tx *topicTxn) Commit() {
	tx.actions = nil
}

// Rollback replays the undo log in reverse, restoring the tree to its
// pre-transaction shape.
func (tx *topicTxn) Rollback() {
	for i := len(tx.actions) - 1; i >= 0; i-- {
		tx.actions[i].undo()
	}
	tx.actions = nil
}

// Insert is a single-filter convenience wrapper around a transaction,
// committed immediately.
func (t *topicTree) Insert(filter string, qos uint8, callback topicCallback, cleanup func()) error {
	tx := t.Begin()
	if err := tx.Insert(filter, qos, callback, cleanup); err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

// Remove is a single-filter convenience wrapper, committed immediately.
// Removing an unknown filter is a no-op (unsubscribe is idempotent).
func (t *topicTree) Remove(filter string) {
	tx := t.Begin()
	tx.Remove(filter)
	tx.Commit()
}

// Walk invokes fn once for every active subscription filter, in no
// particular order. Used to rebuild SUBSCRIBE packets after a reconnect.
func (t *topicTree) Walk(fn func(filter string, qos uint8)) {
	t.walk(t.root, fn)
}

func (t *topicTree) walk(node *topicNode, fn func(filter string, qos uint8)) {
	if node.sub != nil {
		fn(node.sub.filter, node.sub.qos)
	}
	for _, child := range node.children {
		t.walk(child, fn)
	}
}

// validatePublishTopic rejects anything that cannot name a single concrete
// topic: PUBLISH topic names carry no wildcards ([MQTT-3.3.2-2]).
func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty publish topic", errProtocol)
	}
	if !utf8.ValidString(topic) {
		return fmt.Errorf("%w: publish topic is not valid UTF-8", errProtocol)
	}
	if strings.ContainsAny(topic, "+#\x00") {
		return fmt.Errorf("%w: publish topic must not contain wildcards", errProtocol)
	}
	return nil
}

// validateSubscribeTopic rejects a SUBSCRIBE/UNSUBSCRIBE filter with
// malformed wildcard placement; wildcards themselves are permitted.
func validateSubscribeTopic(filter string) error {
	return validateFilter(filter)
}

// Publish walks every branch compatible with topic, invoking the callback
// of each matching subscription, and reports how many subscriptions matched.
// A level "L" may descend into children keyed "L", "+", or "#"; a "#"
// child's subscription (if any) fires immediately since '#' matches itself
// and every deeper level.
func (t *topicTree) Publish(topic string, payload []byte, qos uint8, retain, dup bool) int {
	levels := strings.Split(topic, "/")
	dollarTopic := len(topic) > 0 && topic[0] == '$'
	return t.publishLevels(t.root, topic, levels, payload, qos, retain, dup, dollarTopic, true)
}

func (t *topicTree) publishLevels(node *topicNode, topic string, levels []string, payload []byte, qos uint8, retain, dup, dollarTopic, atRoot bool) int {
	if len(levels) == 0 {
		matches := 0
		if node.sub != nil {
			node.sub.callback(topic, payload, qos, retain, dup)
			matches++
		}
		// [MQTT-4.7.1-2]: '#' also matches the parent level of the filter
		// itself, e.g. "home/#" matches the topic "home", not just
		// "home/anything"; the topic ran out of levels exactly at this
		// node, so a "#" child here is a match with zero remaining levels.
		if child, ok := node.children["#"]; ok && child.sub != nil {
			child.sub.callback(topic, payload, qos, retain, dup)
			matches++
		}
		return matches
	}

	matches := 0
	level := levels[0]
	rest := levels[1:]

	if child, ok := node.children[level]; ok {
		matches += t.publishLevels(child, topic, rest, payload, qos, retain, dup, dollarTopic, false)
	}

	// [MQTT-4.7.2-1]: a leading wildcard never matches a topic starting
	// with '$', even below the root (the whole filter is disqualified by
	// its first segment, which is this recursion's starting node only
	// when atRoot is true).
	if dollarTopic && atRoot {
		return matches
	}

	if child, ok := node.children["+"]; ok {
		matches += t.publishLevels(child, topic, rest, payload, qos, retain, dup, dollarTopic, false)
	}
	if child, ok := node.children["#"]; ok && child.sub != nil {
		child.sub.callback(topic, payload, qos, retain, dup)
		matches++
	}
	return matches
}
