package mcpserver

// ContentFormatContract describes how blog posts and portfolio items are
// laid out in a project so LLM consumers save them correctly.
const ContentFormatContract = `# Sitedesk Content Format Contract

A project keeps its content as plain files under the project root.
The static-site build reads these files; do not edit them by hand while
the tools are available.

## Layout

` + "```" + `text
<project>/
  data/
    blog.json            # list of blog post records
    blog/markdown/       # one <slug>.md per post
  articles.json          # list of portfolio items
  static/uploads/        # uploaded images, served as /uploads/<name>
  dist/                  # build output, never written by the tools
` + "```" + `

## Blog posts

Saved with ` + "`" + `save_blog_post` + "`" + `. A save fully replaces the stored record.

| field   | required | notes                                             |
|---------|----------|---------------------------------------------------|
| title   | yes      | display title                                     |
| slug    | yes      | file-name safe; becomes data/blog/markdown/<slug>.md |
| date    | no       | YYYY-MM-DD                                        |
| tags    | no       | comma-separated string, e.g. ` + "`" + `go, tooling` + "`" + `       |
| summary | no       | when empty the build uses the first 120 characters |
| content | no       | Markdown body (GitHub Flavored Markdown)          |

## Portfolio items

Saved with ` + "`" + `save_portfolio_item` + "`" + `. Items are keyed by ` + "`" + `url` + "`" + `.
Saving an existing URL merges: fields left out keep their stored value, so a
cover written by the build is not lost. Passing an empty string clears a
field.

| field   | required | notes                            |
|---------|----------|----------------------------------|
| title   | yes      |                                  |
| url     | yes      | external article URL             |
| date    | no       | YYYY-MM-DD                       |
| tags    | no       | comma-separated string           |
| cover   | no       | image path or URL                |
| summary | no       |                                  |

## Rules

1. Slugs contain no path separators and no ` + "`" + `..` + "`" + `.
2. Files are UTF-8; Markdown paths in blog.json use forward slashes.
3. Images are referenced with absolute paths: ` + "`" + `![alt](/uploads/name.png)` + "`" + `.
4. Run a build after saving to refresh the generated site.

## Example

` + "```" + `markdown
# Shipping a tiny CLI

Notes from building a release tool.

![Terminal screenshot](/uploads/release-cli.png)

- single static binary
- ~~shell scripts~~ gone
` + "```" + `
`
