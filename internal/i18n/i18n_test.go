package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "MCQ Generator" {
		t.Errorf("T(AppTitle) = %q, want 'MCQ Generator'", got)
	}

	got = T(ctx, "ErrNotFound")
	if got != "Not found." {
		t.Errorf("T(ErrNotFound) = %q, want 'Not found.'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Генератор тестов" {
		t.Errorf("T(AppTitle) = %q, want 'Генератор тестов'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsGenerated", 1)
	if got1 != "1 question generated." {
		t.Errorf("Tp(QuestionsGenerated, 1) = %q", got1)
	}

	got5 := Tp(ctx, "QuestionsGenerated", 5)
	if got5 != "5 questions generated." {
		t.Errorf("Tp(QuestionsGenerated, 5) = %q", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ReportQuestionN", map[string]any{"N": 3})
	if got != "Question 3" {
		t.Errorf("Td(ReportQuestionN, N=3) = %q, want 'Question 3'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLocalizerFallback(t *testing.T) {
	initLang(t, "en")

	got := T(context.Background(), "ErrNoFile")
	if got != "No file uploaded." {
		t.Errorf("T without localizer = %q, want English text", got)
	}
}
