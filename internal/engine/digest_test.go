package engine

import "testing"

func TestContentDigestName_Deterministic(t *testing.T) {
	a := ContentDigestName([]byte("hello"), "foo.png")
	b := ContentDigestName([]byte("hello"), "bar.tex")
	if a[:len(a)-4] != b[:len(b)-4] {
		t.Errorf("same bytes produced different digests: %s vs %s", a, b)
	}
	if a == b {
		t.Errorf("different logical names should keep distinct extensions when they differ: %s == %s", a, b)
	}
}

func TestContentDigestName_DifferentBytes(t *testing.T) {
	a := ContentDigestName([]byte("hello"), "foo.png")
	b := ContentDigestName([]byte("world"), "foo.png")
	if a == b {
		t.Error("different content produced the same digest name")
	}
}

func TestUIPathDigestName_StableAcrossSourceChanges(t *testing.T) {
	a := UIPathDigestName("ui/icon/012345/icon.tex", ".tex")
	b := UIPathDigestName("ui/icon/012345/icon.tex", ".tex")
	if a != b {
		t.Error("UI path digest should be a pure function of the path")
	}
}

func TestIsUIPath(t *testing.T) {
	if !IsUIPath("ui/icon/foo.tex") {
		t.Error("expected ui/ prefix to be detected")
	}
	if IsUIPath("chara/equipment/foo.tex") {
		t.Error("non-ui path incorrectly classified as UI")
	}
}

func TestCompositeOutputDigestName_UIStableAcrossRecomposite(t *testing.T) {
	a := CompositeOutputDigestName("ui/icon/foo.tex", "default", []byte("v1"), true)
	b := CompositeOutputDigestName("ui/icon/foo.tex", "default", []byte("v2"), true)
	if a != b {
		t.Errorf("UI composite output name should be stable across recomposites: %s vs %s", a, b)
	}
}

func TestCompositeOutputDigestName_NonUIHashesData(t *testing.T) {
	a := CompositeOutputDigestName("chara/equipment/foo.tex", "default", []byte("v1"), false)
	b := CompositeOutputDigestName("chara/equipment/foo.tex", "default", []byte("v2"), false)
	if a == b {
		t.Error("non-UI composite output should hash data, not stay stable")
	}
}
