package taxonomy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadops-cli/internal/config"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/resilience"
	"github.com/sells-group/leadops-cli/internal/scoring"
	"github.com/sells-group/leadops-cli/internal/tracking"
	"github.com/sells-group/leadops-cli/pkg/notion"
)

func TestParseLanding(t *testing.T) {
	header := []string{"№", " Посадочная ", "Тип трафика", "Продукт/Оффер"}
	rows := [][]string{
		{"1", "https://ai.example.com/intensive?utm_source=vk&amp;x=1", "платный трафик", "Интенсив 3 дня"},
		{"2", "https://ai.example.com/intensive?utm_source=tg", "платный трафик", "Интенсив 3 дня"},
		{"3", "https://ai.example.com/baza/web", "база", "Нейростафф"},
		{"4", "https://ai.example.com/gpt", "платный трафик", "Неизвестный оффер"},
		{"5", "", "платный трафик", "ChatGPT. Вебинар"},
		{"6", "https://ai.example.com/short"},
	}

	got, err := ParseLanding(header, rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"ai.example.com/gpt", "ai.example.com/intensive"}, got.PaidURLs)
	assert.Equal(t, []model.CategoryURL{
		{URL: "ai.example.com/baza/web", Category: "neirostaff"},
		{URL: "ai.example.com/intensive", Category: "intensive3day"},
	}, got.CategoryURLs)
}

func TestParseLanding_MissingColumns(t *testing.T) {
	_, err := ParseLanding([]string{"Посадочная"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Тип трафика")
	assert.Contains(t, err.Error(), "Продукт/Оффер")
}

func TestOfferCategory(t *testing.T) {
	tests := []struct {
		offer string
		want  string
		ok    bool
	}{
		{"Нейростафф", "neirostaff", true},
		{" ChatGPT. Курс 5 уроков ", "chatgpt", true},
		{"Курс AI. 7 уроков", "course7lesson", true},
		{"Интенсив 2 дня", "intensive2day", true},
		{"Вселенная AI", "universe", true},
		{"", "", false},
		{"Другое", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.offer, func(t *testing.T) {
			got, ok := OfferCategory(tt.offer)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChannels(t *testing.T) {
	got, err := ParseChannels([]string{"Ключ", "Название"}, [][]string{
		{"vk", "ВКонтакте"},
		{" tg ", "Telegram"},
		{"vk", "duplicate"},
		{"", "no key"},
		{"yandex"},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Channel{
		{Key: "vk", Title: "ВКонтакте"},
		{Key: "tg", Title: "Telegram"},
		{Key: "yandex"},
	}, got)
}

func TestParseExpenses(t *testing.T) {
	got, err := ParseExpenses([]string{"Дата", "Посадочная", "Канал", "Расход"}, [][]string{
		{"2024-01-11", "https://ai.example.com/intensive?utm_source=vk", "vk", "1 500 ₽"},
		{"12.01.2024", "ai.example.com/gpt", "tg", "abc"},
		{"bad date", "ai.example.com/gpt", "tg", "100"},
		{"2024-01-11", "", "tg", "100"},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Expense{
		{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), Landing: "ai.example.com/intensive", Channel: "vk", Amount: 1500},
		{Date: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), Landing: "ai.example.com/gpt", Channel: "tg", Amount: 0},
	}, got)
}

func TestMissing(t *testing.T) {
	assert.Equal(t,
		[]model.Channel{{Key: "tg", Title: "Telegram"}},
		MissingChannels([]model.Channel{{Key: "vk"}}, []model.Channel{{Key: "vk", Title: "new title"}, {Key: "tg", Title: "Telegram"}, {Key: "tg"}}),
	)
	assert.Equal(t, []string{"a", "c"}, MissingURLs([]string{"b"}, []string{"c", "b", "a", "c", ""}))
	assert.Equal(t,
		[]model.CategoryURL{{URL: "a", Category: "universe"}},
		MissingCategoryURLs(
			[]model.CategoryURL{{URL: "a", Category: "chatgpt"}},
			[]model.CategoryURL{{URL: "a", Category: "chatgpt"}, {URL: "a", Category: "universe"}},
		),
	)
	assert.Nil(t, MissingURLs([]string{"a"}, []string{"a"}))
}

type memStore struct {
	channels []model.Channel
	paid     []string
	cats     []model.CategoryURL
	groups   []scoring.Group
	expenses []model.Expense
	from, to time.Time
	inserts  int
	listErr  error
}

func (m *memStore) ListChannels(context.Context) ([]model.Channel, error) {
	return m.channels, m.listErr
}
func (m *memStore) ListPaidURLs(context.Context) ([]string, error) { return m.paid, m.listErr }
func (m *memStore) ListCategoryURLs(context.Context) ([]model.CategoryURL, error) {
	return m.cats, m.listErr
}
func (m *memStore) ListScoringGroups(context.Context) ([]scoring.Group, error) {
	return m.groups, m.listErr
}
func (m *memStore) InsertChannels(_ context.Context, c []model.Channel) error {
	m.inserts++
	m.channels = append(m.channels, c...)
	return nil
}
func (m *memStore) InsertPaidURLs(_ context.Context, u []string) error {
	m.inserts++
	m.paid = append(m.paid, u...)
	return nil
}
func (m *memStore) InsertCategoryURLs(_ context.Context, u []model.CategoryURL) error {
	m.inserts++
	m.cats = append(m.cats, u...)
	return nil
}
func (m *memStore) UpsertScoringGroups(_ context.Context, g []scoring.Group) error {
	m.groups = g
	return nil
}
func (m *memStore) ReplaceExpenses(_ context.Context, from, to time.Time, rows []model.Expense) error {
	m.from, m.to, m.expenses = from, to, rows
	return nil
}

func TestSyncer_InsertsOnlyMissing(t *testing.T) {
	ctx := context.Background()
	st := &memStore{channels: []model.Channel{{Key: "vk", Title: "VK"}}, paid: []string{"a.ru/x"}}
	s := NewSyncer(st)

	n, err := s.SyncChannels(ctx, []model.Channel{{Key: "vk"}, {Key: "tg", Title: "Telegram"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.SyncPaidURLs(ctx, []string{"a.ru/x", "b.ru/y"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a.ru/x", "b.ru/y"}, st.paid)

	n, err = s.SyncCategoryURLs(ctx, []model.CategoryURL{{URL: "b.ru/y", Category: "chatgpt"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a second pass over the same input writes nothing
	inserts := st.inserts
	for _, run := range []func() (int, error){
		func() (int, error) { return s.SyncChannels(ctx, []model.Channel{{Key: "tg"}}) },
		func() (int, error) { return s.SyncPaidURLs(ctx, []string{"b.ru/y"}) },
		func() (int, error) {
			return s.SyncCategoryURLs(ctx, []model.CategoryURL{{URL: "b.ru/y", Category: "chatgpt"}})
		},
	} {
		n, err := run()
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Equal(t, inserts, st.inserts)
}

func TestSyncer_ListError(t *testing.T) {
	st := &memStore{listErr: errors.New("db down")}
	_, err := NewSyncer(st).SyncChannels(context.Background(), []model.Channel{{Key: "vk"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taxonomy: list channels")
	assert.Zero(t, st.inserts)
}

func TestSyncer_Expenses(t *testing.T) {
	st := &memStore{}
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	rows := []model.Expense{{Date: d(5), Amount: 1}, {Date: d(2), Amount: 2}, {Date: d(9), Amount: 3}}

	n, err := NewSyncer(st).SyncExpenses(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, d(2), st.from)
	assert.Equal(t, d(9), st.to)

	n, err = NewSyncer(st).SyncExpenses(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type fakeNotion struct {
	pages []notionapi.Page
	err   error
	calls int
}

func (f *fakeNotion) QueryDatabase(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &notionapi.DatabaseQueryResponse{Results: f.pages}, nil
}

func groupPage(id, name, points string, def bool) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			notion.PropName:    &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: name}}},
			notion.PropDefault: &notionapi.CheckboxProperty{Checkbox: def},
			notion.PropURLs:    &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "ai.example.com/gpt"}}},
			notion.PropPoints:  &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: points}}},
		},
	}
}

func TestNotionGroups(t *testing.T) {
	fn := &fakeNotion{pages: []notionapi.Page{
		groupPage("1", "GPT", "qa_1:\n  Россия: 10\n2:\n  25-34: 5\n", false),
		groupPage("2", "Broken", "qa_1: [", false),
		groupPage("3", "", "", false),
		groupPage("4", "Default", "", true),
	}}
	src := NewNotionGroups(fn, "db", resilience.RetryPolicy{MaxAttempts: 1})

	groups, err := src.Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, scoring.Group{
		Name:   "GPT",
		URLs:   []string{"ai.example.com/gpt"},
		Points: map[string]map[string]int{"1": {"Россия": 10}, "2": {"25-34": 5}},
	}, groups[0])
	assert.Equal(t, 10, groups[0].AnswerPoints(1, "Россия"))
	assert.True(t, groups[1].Default)
	assert.Nil(t, groups[1].Points)
}

func TestNotionGroups_Error(t *testing.T) {
	fn := &fakeNotion{err: errors.New("boom")}
	_, err := NewNotionGroups(fn, "db", resilience.RetryPolicy{MaxAttempts: 1}).Groups(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taxonomy: notion groups")
}

func TestSyncGroups_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`scoring_groups:
  - name: База оффер
    points:
      "1":
        да: 3
  - name: Default
    default: true
`), 0o644))

	st := &memStore{}
	n, err := NewSyncer(st).SyncGroups(context.Background(), FileGroups{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "База оффер", st.groups[0].Name)
}

func TestNewGroupSource(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scoring.GroupsSource = "file"
	_, err := NewGroupSource(cfg, nil)
	require.Error(t, err)

	cfg.Scoring.GroupsFile = "groups.yaml"
	src, err := NewGroupSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, FileGroups{Path: "groups.yaml"}, src)

	cfg.Scoring.GroupsSource = "notion"
	_, err = NewGroupSource(cfg, nil)
	require.Error(t, err)
	src, err = NewGroupSource(cfg, &fakeNotion{})
	require.NoError(t, err)
	assert.IsType(t, &NotionGroups{}, src)

	cfg.Scoring.GroupsSource = "sheet"
	_, err = NewGroupSource(cfg, nil)
	require.Error(t, err)
}

func TestLoadTables(t *testing.T) {
	st := &memStore{
		channels: []model.Channel{{Key: "vk", Title: "VK"}},
		paid:     []string{"ai.example.com/gpt"},
		cats:     []model.CategoryURL{{URL: "ai.example.com/gpt", Category: "chatgpt"}},
		groups:   []scoring.Group{{Name: "GPT", URLs: []string{"ai.example.com/gpt"}}, {Name: "База оффер"}},
	}
	tables, groups, err := LoadTables(context.Background(), st, "База оффер")
	require.NoError(t, err)
	assert.Equal(t, st.channels, tables.Channels)
	assert.Equal(t, st.paid, tables.PaidURLs)
	assert.Equal(t, st.cats, tables.CategoryURLs)
	assert.Equal(t, 2, groups.Len())
	assert.Equal(t, "GPT", groups.Resolve(tracking.Parse("https://ai.example.com/gpt?x=1")).Name)
	assert.Equal(t, "База оффер", groups.Resolve(tracking.Parse("https://ai.example.com/baza/x")).Name)

	_, _, err = LoadTables(context.Background(), &memStore{listErr: errors.New("down")}, "")
	require.Error(t, err)
}
