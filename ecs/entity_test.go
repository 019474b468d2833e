// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package ecs

import "testing"

type position struct{ X, Y float32 }
type velocity struct{ X, Y float32 }

func TestAssignContainGet(t *testing.T) {
	w := New()
	e := w.CreateEntity()

	if Contain[position](e) {
		t.Fatalf("Contain[position]:\nhave true\nwant false")
	}
	p, ok := Assign(e, position{1, 2})
	if !ok {
		t.Fatalf("Assign: ok\nhave false\nwant true")
	}
	if p.X != 1 || p.Y != 2 {
		t.Fatalf("Assign: *p\nhave %v\nwant {1 2}", *p)
	}
	if !Contain[position](e) {
		t.Fatalf("Contain[position]:\nhave false\nwant true")
	}
	g, ok := Get[position](e)
	if !ok || g != p {
		t.Fatalf("Get[position]:\nhave (%p, %t)\nwant (%p, true)", g, ok, p)
	}
}

func TestAssignOverwritePreservesIdentity(t *testing.T) {
	w := New()
	e := w.CreateEntity()

	p1, _ := Assign(e, position{1, 1})
	p2, ok := Assign(e, position{2, 2})
	if !ok {
		t.Fatalf("Assign (overwrite): ok\nhave false\nwant true")
	}
	if p1 != p2 {
		t.Fatalf("Assign (overwrite): pointer identity\nhave %p, %p\nwant equal", p1, p2)
	}
	if p1.X != 2 || p1.Y != 2 {
		t.Fatalf("Assign (overwrite): *p1\nhave %v\nwant {2 2}", *p1)
	}
}

func TestContain2Contain3(t *testing.T) {
	w := New()
	e := w.CreateEntity()
	Assign(e, position{})
	if Contain2[position, velocity](e) {
		t.Fatalf("Contain2: have true want false")
	}
	Assign(e, velocity{})
	if !Contain2[position, velocity](e) {
		t.Fatalf("Contain2: have false want true")
	}
}

func TestRemove(t *testing.T) {
	w := New()
	e := w.CreateEntity()
	Assign(e, position{})

	if !Remove[position](e) {
		t.Fatalf("Remove: have false want true")
	}
	if Contain[position](e) {
		t.Fatalf("Contain[position] after Remove:\nhave true\nwant false")
	}
	if Remove[position](e) {
		t.Fatalf("Remove (already removed): have true want false")
	}
}

func TestWithWith2(t *testing.T) {
	w := New()
	e := w.CreateEntity()
	Assign(e, position{3, 4})

	var sum float32
	ok := With(e, func(p *position) bool {
		sum = p.X + p.Y
		return true
	})
	if !ok || sum != 7 {
		t.Fatalf("With: (ok, sum)\nhave (%t, %v)\nwant (true, 7)", ok, sum)
	}

	Assign(e, velocity{1, 1})
	called := false
	With2(e, func(p *position, v *velocity) bool {
		called = true
		return true
	})
	if !called {
		t.Fatalf("With2: callback not invoked")
	}
}
