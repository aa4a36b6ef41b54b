package richtext

import "testing"

func TestCheckURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com", true},
		{"https://example.com/a?b=c", true},
		{"mailto:someone@example.com", true},
		{"tel:+4412345", true},
		{"ftp://files.example.com", true},
		{"/relative/path", true},
		{"#anchor", true},
		{"javascript:alert(1)", false},
		{"JavaScript:alert(1)", false},
		{"jav\tascript:alert(1)", false},
		{" javascript:alert(1)", false},
		{"data:text/html;base64,PHNjcmlwdD4=", false},
		{"vbscript:msgbox", false},
	}
	for _, tt := range tests {
		got, ok := CheckURL(tt.url)
		if ok != tt.want {
			t.Errorf("CheckURL(%q) ok = %v, want %v", tt.url, ok, tt.want)
		}
		if ok && got != tt.url {
			t.Errorf("CheckURL(%q) rewrote the url to %q", tt.url, got)
		}
	}
}

func TestWhitelister_Clean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello", "hello"},
		{"allowed tags lose attributes", `<p class="lead" style="color:red">hi <b id="x">there</b></p>`, `<p>hi <b>there</b></p>`},
		{"unknown tags are unwrapped", `<span>hi <u>you</u></span>`, `hi you`},
		{"comments are removed", `<p>a<!-- secret -->b</p>`, `<p>ab</p>`},
		{"safe link kept", `<a href="https://example.com" target="_blank">x</a>`, `<a href="https://example.com">x</a>`},
		{"unsafe link stripped", `<a href="javascript:alert(1)">x</a>`, `<a>x</a>`},
		{"entity encoded scheme stripped", `<a href="jav&#x09;ascript:alert(1)">x</a>`, `<a>x</a>`},
		{"image attributes", `<img src="/a.png" width="10" height="5" alt="A" onerror="x()">`, `<img src="/a.png" width="10" height="5" alt="A"/>`},
		{"divs stay divs", `<div>x</div>`, `<div>x</div>`},
		{"editor markup ignored", `<a data-linktype="page" data-id="1" href="/a/">a</a>`, `<a href="/a/">a</a>`},
		{"nested lists", `<ul><li><em>one</em></li><li>two<br></li></ul>`, `<ul><li><em>one</em></li><li>two<br/></li></ul>`},
	}
	w := NewWhitelister()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Clean(tt.input)
			if err != nil {
				t.Fatalf("Clean error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWhitelister_CustomRules(t *testing.T) {
	w := NewWhitelister()
	w.ElementRules["blockquote"] = AttributeRule(map[string]AttributeCheck{"cite": CheckURL})
	got, err := w.Clean(`<blockquote cite="https://example.com" class="q">q</blockquote>`)
	if err != nil {
		t.Fatalf("Clean error: %v", err)
	}
	if want := `<blockquote cite="https://example.com">q</blockquote>`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
