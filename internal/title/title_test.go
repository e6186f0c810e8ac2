package title

import "testing"

func TestNormalize_CaseWhitespaceEdition(t *testing.T) {
	n := NewNormalizer(nil)

	cases := []struct {
		in   string
		want string
	}{
		{"The Matrix", "the matrix"},
		{"the   matrix", "the matrix"},
		{"  The Matrix  ", "the matrix"},
		{"The Matrix (Director's Cut)", "the matrix"},
		{"Blade Runner (Final Cut)", "blade runner"},
		{"Alien (Remastered) (1979)", "alien"},
		// 属于标题本身的括号必须保留。
		{"Birdman (or The Unexpected Virtue of Ignorance)", "birdman (or the unexpected virtue of ignorance)"},
	}
	for _, c := range cases {
		if got := n.Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q)=%q，期望 %q", c.in, got, c.want)
		}
	}

	// 三个写法必须折叠到同一个 key。
	a := n.Normalize("The Matrix")
	b := n.Normalize("the   matrix")
	d := n.Normalize("The Matrix (Director's Cut)")
	if a != b || a != d {
		t.Fatalf("规范化不一致：%q / %q / %q", a, b, d)
	}
}

func TestNormalizeWithYear_ExtractsTrailingYear(t *testing.T) {
	n := NewNormalizer(nil)

	got, year := n.NormalizeWithYear("Heat (1995)")
	if got != "heat" || year != 1995 {
		t.Fatalf("期望 (heat, 1995)，实际 (%q, %d)", got, year)
	}

	// 年份 + 版本后缀混合：两者都剥离，年份保留首个命中。
	got, year = n.NormalizeWithYear("Heat (1995) (Remastered)")
	if got != "heat" || year != 1995 {
		t.Fatalf("期望 (heat, 1995)，实际 (%q, %d)", got, year)
	}

	got, year = n.NormalizeWithYear("Heat")
	if got != "heat" || year != 0 {
		t.Fatalf("无年份时应返回 0，实际 (%q, %d)", got, year)
	}
}

func TestNormalize_ExtraSuffixesFromConfig(t *testing.T) {
	n := NewNormalizer([]string{"Ultimate Fan Edit"})

	if got := n.Normalize("Dune (Ultimate Fan Edit)"); got != "dune" {
		t.Fatalf("配置后缀未被剥离：%q", got)
	}
	// 未配置时必须保留（不做“聪明猜测”）。
	n2 := NewNormalizer(nil)
	if got := n2.Normalize("Dune (Ultimate Fan Edit)"); got != "dune (ultimate fan edit)" {
		t.Fatalf("未配置的后缀不应被剥离：%q", got)
	}
}
