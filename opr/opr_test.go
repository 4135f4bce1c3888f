package opr

import "testing"

func TestDecodeBasicOverlay(t *testing.T) {
	text := "Mesh = \"body\"\n" +
		"BlendMode = Add\n" +
		"Edge = 0\n" +
		"UVScroll = (0.5, -0.25)\n" +
		"\n" +
		"Mesh = \"hair\"\n" +
		"EdgeColor = (0, 0, 0, 1)\n"

	o, err := Decode([]byte(text))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := o.Meshes["body"]
	if !ok {
		t.Fatal("missing body overlay")
	}
	if !body.AdditiveBlending {
		t.Error("expected AdditiveBlending true")
	}
	if !body.NoEdge {
		t.Error("expected NoEdge true")
	}
	if !body.HasUVScroll || body.UVScroll[0] != 0.5 || body.UVScroll[1] != -0.25 {
		t.Errorf("UVScroll = %v", body.UVScroll)
	}

	hair, ok := o.Meshes["hair"]
	if !ok {
		t.Fatal("missing hair overlay")
	}
	if len(hair.EdgeColor) != 4 {
		t.Errorf("EdgeColor = %v, want 4 entries", hair.EdgeColor)
	}
}

func TestDecodeIgnoresUnknownKeysAndPreHeaderLines(t *testing.T) {
	text := "Bogus = 1\n" +
		"Mesh = top\n" +
		"TotallyUnknownKey = whatever\n"

	o, err := Decode([]byte(text))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(o.Meshes) != 1 {
		t.Fatalf("Meshes = %d, want 1", len(o.Meshes))
	}
}
