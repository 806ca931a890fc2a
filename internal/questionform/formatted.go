package questionform

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Formatted 把一段 HTML 片段规范化为平台 FormattedContent 接受的 XHTML 子集：
// 解析后重新渲染（空元素自闭合、属性值转义、未闭合标签补齐）。
func Formatted(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("questionform: 解析 formatted content 失败：%w", err)
	}
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("questionform: 渲染 formatted content 失败：%w", err)
	}
	return strings.TrimSpace(out), nil
}

// brokenImageAlt 是图片加载失败时展示给 worker 的提示。
const brokenImageAlt = "Image not shown correctly!"

// Image 生成展示单张图片的 XHTML 片段；prefix 是图片前的说明文字（可为空）。
// URL 只做转义，不做可达性校验。
func Image(prefix, src string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p></p>"))
	if err != nil {
		return "", err
	}
	p := doc.Find("p").First()
	if prefix != "" {
		p.AppendHtml(htmlText(prefix))
	}
	p.AppendHtml("<img/>")
	p.Find("img").SetAttr("src", src).SetAttr("alt", brokenImageAlt)

	out, err := p.Html()
	if err != nil {
		return "", fmt.Errorf("questionform: 渲染图片片段失败：%w", err)
	}
	return strings.TrimSpace(out), nil
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlText(s string) string { return textEscaper.Replace(s) }
