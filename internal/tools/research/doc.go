// Package research provides the scrape_web_page tool: links in a prompt are
// fetched, reduced to text, and summarized so the LaTeX generator can cite them.
//
// Pages are fetched over plain HTTP by default. When a page needs JavaScript,
// a headless Chrome session driven by Rod can be used instead.
package research
