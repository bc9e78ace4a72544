package cachekey

import (
	"strings"
	"testing"
)

func TestCanonicalizeStripsAllQueryByDefault(t *testing.T) {
	got, err := Canonicalize("http://example.com/a/pic.png?size=2&token=x", QueryPolicy{})
	if err != nil {
		t.Fatalf("规约失败: %v", err)
	}
	if got != "http://example.com/a/pic.png" {
		t.Fatalf("默认应剥离全部查询参数: %s", got)
	}
}

func TestCanonicalizeKeepsSelectedParams(t *testing.T) {
	policy := QueryPolicy{Names: []string{"size"}}
	got, err := Canonicalize("http://example.com/pic.png?token=x&size=2", policy)
	if err != nil {
		t.Fatalf("规约失败: %v", err)
	}
	if got != "http://example.com/pic.png?size=2" {
		t.Fatalf("应仅保留 size 参数: %s", got)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"http://example.com/a/pic.png?b=2&a=1",
		"https://EXAMPLE.com/x.jpg",
		"http://h/cgi-bin/math.cgi?x=1",
	}
	policy := QueryPolicy{All: true}
	for _, input := range inputs {
		once, err := Canonicalize(input, policy)
		if err != nil {
			t.Fatalf("规约失败 %s: %v", input, err)
		}
		twice, err := Canonicalize(once, policy)
		if err != nil {
			t.Fatalf("二次规约失败 %s: %v", once, err)
		}
		if once != twice {
			t.Fatalf("规约不幂等: %s != %s", once, twice)
		}
	}
}

func TestDeriveRelativePathExample(t *testing.T) {
	rel, err := DeriveRelativePath("http://example.com/a/b/pic.PNG", QueryPolicy{})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	if rel.Dir != "example_com_0caaf24ab1a0c33440c06afe99df986365b0781f" {
		t.Fatalf("host 目录不符: %s", rel.Dir)
	}
	if rel.File != "8453f6cf8fd64994f56f5a058f4ffb9d1e449797.png" {
		t.Fatalf("缓存键不符: %s", rel.File)
	}
}

func TestDeriveRelativePathQueryOrderInsensitive(t *testing.T) {
	policy := QueryPolicy{Names: []string{"w", "h"}}
	a, err := DeriveRelativePath("http://example.com/p.jpg?w=10&h=20&sig=zzz", policy)
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	b, err := DeriveRelativePath("http://example.com/p.jpg?h=20&sig=yyy&w=10", policy)
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	if a != b {
		t.Fatalf("参数顺序不应影响结果: %v != %v", a, b)
	}
}

func TestDeriveRelativePathQueryAffectsKey(t *testing.T) {
	a, err := DeriveRelativePath("http://example.com/p.jpg?w=10", QueryPolicy{All: true})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	b, err := DeriveRelativePath("http://example.com/p.jpg?w=11", QueryPolicy{All: true})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	if a.File == b.File {
		t.Fatalf("参数值不同应产生不同缓存键: %s", a.File)
	}
}

func TestExtensionFallsBackToJpg(t *testing.T) {
	cases := map[string]string{
		"http://example.com/a/pic.webp": "jpg",
		"http://example.com/a/pic":      "jpg",
		"http://example.com/a/pic.TIFF": "tiff",
		"http://example.com/a/pic.GIF":  "gif",
	}
	for rawURL, wantExt := range cases {
		rel, err := DeriveRelativePath(rawURL, QueryPolicy{})
		if err != nil {
			t.Fatalf("派生失败 %s: %v", rawURL, err)
		}
		if !strings.HasSuffix(rel.File, "."+wantExt) {
			t.Fatalf("%s 的扩展名应为 %s, got %s", rawURL, wantExt, rel.File)
		}
	}
}

func TestFormulaURLsProduceDistinctStableKeys(t *testing.T) {
	a1, err := DeriveRelativePath("http://h/cgi-bin/math.cgi?x=1", QueryPolicy{})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	a2, err := DeriveRelativePath("http://h/cgi-bin/math.cgi?x=1", QueryPolicy{})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	b, err := DeriveRelativePath("http://h/cgi-bin/math.cgi?x=2", QueryPolicy{})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}

	if a1 != a2 {
		t.Fatalf("同一公式 URL 结果应稳定: %v != %v", a1, a2)
	}
	if a1.File == b.File {
		t.Fatalf("公式后缀不同应产生不同缓存键: %s", a1.File)
	}
	if a1.File != "3c8ade312747a3c3d1d36d9d150d59e0bf7c3f71.jpg" {
		t.Fatalf("公式缓存键与历史派生不符: %s", a1.File)
	}
	if b.File != "4db76a630b20f5c722e285e69560f1f4fad88cac.jpg" {
		t.Fatalf("公式缓存键与历史派生不符: %s", b.File)
	}
}

func TestFormulaKeyDiffersFromGenericDerivation(t *testing.T) {
	formula, err := DeriveRelativePath("http://h/cgi-bin/math.cgi?x=1", QueryPolicy{All: true})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	generic, err := DeriveRelativePath("http://h/cgi-bin/other.cgi?x=1", QueryPolicy{All: true})
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	if formula.File == generic.File {
		t.Fatalf("公式路径不应落入通用派生: %s", formula.File)
	}
}

func TestDeriveRelativePathRejectsMissingHost(t *testing.T) {
	if _, err := DeriveRelativePath("not-a-url", QueryPolicy{}); err == nil {
		t.Fatalf("缺少 host 的输入应报错")
	}
}
