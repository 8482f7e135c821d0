package export

import (
	"fmt"
	"strings"
)

const (
	rule      = "============================================================"
	shortRule = "----------------------------------------"
	noneFound = "✓ Персональних даних не виявлено"
)

func anonymizedTXT(d *Document, withMetadata bool) string {
	var parts []string
	if withMetadata {
		parts = append(parts, d.metadataHeader(), rule, "")
	}
	parts = append(parts, d.AnonymizedText)
	return strings.Join(parts, "\n")
}

func anonymizedMarkdown(d *Document, withMetadata bool) string {
	var parts []string
	if withMetadata {
		parts = append(parts,
			"# Анонімізований документ", "",
			"```", d.metadataHeader(), "```", "",
			"---", "")
	}
	parts = append(parts, d.AnonymizedText)
	return strings.Join(parts, "\n")
}

func entitiesTXT(d *Document) string {
	lines := []string{
		"ЗВІТ ПРО ВИЯВЛЕНІ ПЕРСОНАЛЬНІ ДАНІ",
		rule,
		"",
		fmt.Sprintf("Загальна кількість сутностей: %d", len(d.Entities)),
		"Дата аналізу: " + d.Timestamp.Format("2006-01-02 15:04:05"),
		"",
		rule,
		"",
	}
	if len(d.Entities) == 0 {
		return strings.Join(append(lines, noneFound), "\n")
	}
	types, groups := d.byType()
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("\n%s (%d знайдено)", t, len(groups[t])), shortRule)
		for i, e := range groups[t] {
			quoted, detail := describe(e)
			lines = append(lines, fmt.Sprintf("%d. %s %s", i+1, quoted, detail))
		}
	}
	return strings.Join(lines, "\n")
}

func fullTXT(d *Document) string {
	lines := []string{
		"ПОВНИЙ ЗВІТ ДЕІДЕНТИФІКАЦІЇ",
		rule,
		"",
		d.metadataHeader(),
		"",
		rule,
		"",
		"АНОНІМІЗОВАНИЙ ТЕКСТ:",
		strings.Repeat("-", len(rule)),
		d.AnonymizedText,
		"",
		rule,
		"",
		entitiesTXT(d),
	}
	return strings.Join(lines, "\n")
}

func fullMarkdown(d *Document) string {
	lines := []string{
		"# Звіт про деідентифікацію", "",
		"## Метадані аналізу", "",
		"```", d.metadataHeader(), "```", "",
		"## Статистика", "",
		"| Показник | Значення |",
		"|----------|----------|",
	}
	for _, row := range d.Statistics().Rows() {
		lines = append(lines, fmt.Sprintf("| %s | %s |", row[0], row[1]))
	}
	lines = append(lines,
		"", "---", "",
		"## Анонімізований текст", "",
		d.AnonymizedText,
		"", "---", "",
		"## Виявлені сутності", "")

	if len(d.Entities) == 0 {
		return strings.Join(append(lines, noneFound), "\n")
	}
	types, groups := d.byType()
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("### %s (%d знайдено)", t, len(groups[t])), "")
		for i, e := range groups[t] {
			quoted, detail := describe(e)
			lines = append(lines, fmt.Sprintf("%d. **%s** %s", i+1, quoted, detail))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
