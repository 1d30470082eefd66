// list.go - Intrusive doubly linked list for the Citrus Engine

/*
 ██████╗ ██╗ ████████╗ ██████╗  ██╗   ██╗ ███████╗     ███████╗ ███╗   ██╗  ██████╗  ██╗ ███╗   ██╗ ███████╗
██╔════╝ ██║ ╚══██╔══╝ ██╔══██╗ ██║   ██║ ██╔════╝     ██╔════╝ ████╗  ██║ ██╔════╝  ██║ ████╗  ██║ ██╔════╝
██║      ██║    ██║    ██████╔╝ ██║   ██║ ███████╗     █████╗   ██╔██╗ ██║ ██║  ███╗ ██║ ██╔██╗ ██║ █████╗
██║      ██║    ██║    ██╔══██╗ ██║   ██║ ╚════██║     ██╔══╝   ██║╚██╗██║ ██║   ██║ ██║ ██║╚██╗██║ ██╔══╝
╚██████╗ ██║    ██║    ██║  ██║ ╚██████╔╝ ███████║     ███████╗ ██║ ╚████║ ╚██████╔╝ ██║ ██║ ╚████║ ███████╗
 ╚═════╝ ╚═╝    ╚═╝    ╚═╝  ╚═╝  ╚═════╝  ╚══════╝     ╚══════╝ ╚═╝  ╚═══╝  ╚═════╝  ╚═╝ ╚═╝  ╚═══╝ ╚══════╝

(c) 2025 - 2026 The CitrusEngine Authors
https://github.com/citrusos/CitrusEngine

License: GPLv3 or later
*/

// Intrusive circular doubly linked list. Nodes are embedded in their
// owning struct and carry a typed back-pointer, so membership costs no
// allocation and unlinking is O(1) from any position. A node is in at
// most one list at a time; the owner outlives every list it is on.

package main

type ListNode[T any] struct {
	next, prev *ListNode[T]
	owner      T
}

// InitNode detaches the node and records its owner.
func (n *ListNode[T]) InitNode(owner T) {
	n.next = n
	n.prev = n
	n.owner = owner
}

// Owner returns the struct this node is embedded in.
func (n *ListNode[T]) Owner() T { return n.owner }

// Detached reports whether the node is on no list.
func (n *ListNode[T]) Detached() bool { return n.next == n }

type List[T any] struct {
	head ListNode[T]
}

func (l *List[T]) Init() {
	l.head.next = &l.head
	l.head.prev = &l.head
}

func (l *List[T]) Empty() bool { return l.head.next == &l.head }

// PushFront links n at the head.
func (l *List[T]) PushFront(n *ListNode[T]) {
	n.next = l.head.next
	n.prev = &l.head
	l.head.next.prev = n
	l.head.next = n
}

// PushBack links n at the tail.
func (l *List[T]) PushBack(n *ListNode[T]) {
	n.prev = l.head.prev
	n.next = &l.head
	l.head.prev.next = n
	l.head.prev = n
}

// InsertBefore links n immediately before at, which must be on l.
func (l *List[T]) InsertBefore(n, at *ListNode[T]) {
	n.prev = at.prev
	n.next = at
	at.prev.next = n
	at.prev = n
}

// Remove unlinks n from whatever position it holds and re-initialises
// it as detached.
func Remove[T any](n *ListNode[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = n
	n.prev = n
}

// First returns the head node, or nil when the list is empty.
func (l *List[T]) First() *ListNode[T] {
	if l.Empty() {
		return nil
	}
	return l.head.next
}

// PopFront unlinks and returns the head node, or nil when empty.
func (l *List[T]) PopFront() *ListNode[T] {
	n := l.First()
	if n != nil {
		Remove(n)
	}
	return n
}

// Iterate calls fn for every node in order. fn must not unlink nodes
// other than the one it was handed.
func (l *List[T]) Iterate(fn func(n *ListNode[T]) bool) {
	for n := l.head.next; n != &l.head; {
		next := n.next
		if !fn(n) {
			return
		}
		n = next
	}
}

// Len counts the nodes. O(n); used by statistics and tests only.
func (l *List[T]) Len() int {
	cnt := 0
	for n := l.head.next; n != &l.head; n = n.next {
		cnt++
	}
	return cnt
}
