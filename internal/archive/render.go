package archive

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrCorrupt is returned by Parse when the document has no timeline.
var ErrCorrupt = errors.New("archive document has no timeline")

const pageTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>财经快讯</title>
<style>
body{font-family:-apple-system,"PingFang SC","Microsoft YaHei",sans-serif;max-width:860px;margin:0 auto;padding:16px;background:#f5f6f8;color:#222}
header h1{font-size:22px;margin:8px 0}
header p{color:#888;font-size:13px;margin:0 0 16px}
h3.day{font-size:14px;color:#555;border-bottom:1px solid #ddd;padding-bottom:4px;margin:24px 0 8px}
article.item{background:#fff;border-radius:6px;padding:10px 14px;margin:8px 0;box-shadow:0 1px 2px rgba(0,0,0,.06)}
article.item .meta{font-size:12px;color:#999}
article.item .source{margin-left:8px;color:#3370ff}
article.item h2{font-size:16px;margin:4px 0}
article.item h2 a{color:#222;text-decoration:none}
article.item p.original{font-size:13px;color:#777;margin:2px 0 0}
</style>
</head>
<body>
<header>
<h1>财经快讯</h1>
<p>共 {{len .}} 条，按时间倒序</p>
</header>
<main id="timeline">
{{- range .}}
{{- if .NewDay}}
<h3 class="day">{{.Date}}</h3>
{{- end}}
<article class="item" data-date="{{.Date}}">
<div class="meta"><time>{{.Time}}</time><span class="source">{{.Source}}</span></div>
<h2 class="title"><a href="{{.Link}}" target="_blank" rel="noopener">{{.Title}}</a></h2>
{{- if ne .Original .Title}}
<p class="original">{{.Original}}</p>
{{- end}}
</article>
{{- end}}
</main>
</body>
</html>
`

var page = template.Must(template.New("archive").Parse(pageTemplate))

type view struct {
	Item
	NewDay bool
}

// Render produces the complete document for items, which must already be
// newest-first and capped. Output depends only on items.
func Render(items []Item) ([]byte, error) {
	views := make([]view, len(items))
	prev := ""
	for i, it := range items {
		views[i] = view{Item: it, NewDay: it.Date != prev}
		prev = it.Date
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, views); err != nil {
		return nil, fmt.Errorf("render archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse extracts the item blocks of a previously rendered document, in
// document order. Everything outside the timeline is ignored.
func Parse(doc []byte) ([]Item, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse archive: %w", err)
	}

	timeline := d.Find("#timeline")
	if timeline.Length() == 0 {
		return nil, ErrCorrupt
	}

	var items []Item
	timeline.Find("article.item").Each(func(_ int, s *goquery.Selection) {
		a := s.Find("h2.title a").First()
		link, _ := a.Attr("href")
		date, _ := s.Attr("data-date")

		it := Item{
			Time:   strings.TrimSpace(s.Find(".meta time").First().Text()),
			Date:   strings.TrimSpace(date),
			Source: strings.TrimSpace(s.Find(".meta .source").First().Text()),
			Title:  strings.TrimSpace(a.Text()),
			Link:   strings.TrimSpace(link),
		}
		if orig := s.Find("p.original").First(); orig.Length() > 0 {
			it.Original = strings.TrimSpace(orig.Text())
		} else {
			it.Original = it.Title
		}
		if it.Title == "" && it.Link == "" {
			return
		}
		items = append(items, it)
	})
	return items, nil
}
