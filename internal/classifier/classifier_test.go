package classifier

import (
	"strings"
	"testing"

	"github.com/nugget/chatur/internal/intent"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return New(Config{
		RecognizedApps: []string{"brave", "chrome", "firefox", "edge", "calculator", "notepad", "gmail", "explorer", "whatsapp", "spotify"},
		DefaultApp:     "brave",
		TLDs:           []string{"com", "org", "net", "in", "io", "co", "edu", "gov"},
		Extensions:     []string{"pdf", "docx", "doc", "xlsx", "txt", "jpg", "png"},
	}, nil)
}

func TestClassify_Scenarios(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		text   string
		kind   intent.Kind
		params map[string]string
	}{
		{"Set a timer for 5 minutes", intent.Timer, map[string]string{"duration": "5 minutes", "label": "Timer"}},
		{"start a countdown for 30 seconds", intent.Timer, map[string]string{"duration": "30 seconds"}},
		{"set a timer", intent.Timer, map[string]string{"duration": "5 minutes"}},
		{"Open Chrome", intent.AppLaunch, map[string]string{"app_name": "chrome", "action": "open"}},
		{"open youtube.com", intent.AppLaunch, map[string]string{"url": "https://youtube.com", "app_name": "brave", "action": "open"}},
		{"open https://example.org/docs", intent.AppLaunch, map[string]string{"url": "https://example.org/docs"}},
		{"open the wikipedia website", intent.AppLaunch, map[string]string{"url": "https://wikipedia.com"}},
		{"What are my tasks?", intent.Task, map[string]string{"action": "list"}},
		{"close spotify", intent.AppLaunch, map[string]string{"app_name": "spotify", "action": "close"}},
		{"open google", intent.AppLaunch, map[string]string{"app_name": "brave", "action": "open"}},
		{"open report.pdf", intent.FileSearch, map[string]string{"query": "report.pdf"}},
		{"check my mails", intent.Email, map[string]string{"action": "read"}},
		{"search emails from boss", intent.Email, map[string]string{"action": "search", "query": "from:boss"}},
		{"search my inbox for invoice from", intent.Email, map[string]string{"action": "search", "query": "invoice"}},
		{"find emails about invoice", intent.Email, map[string]string{"action": "search", "query": "invoice"}},
		{"remind me at 5 pm to call mom", intent.Reminder, map[string]string{"time": "5 pm to call mom", "text": "remind me at 5 pm to call mom"}},
		{"set a reminder for the meeting", intent.Reminder, map[string]string{"time": "in 1 hour"}},
		{"remind me tomorrow to call mom", intent.Reminder, map[string]string{"time": "in 1 hour"}},
		{"remember that the wifi password is hunter2", intent.Note, map[string]string{"action": "store", "key": "note", "value": "remember that the wifi password is hunter2"}},
		{"set volume to 40", intent.MediaControl, map[string]string{"action": "set_volume", "volume_level": "40"}},
		{"pause the music", intent.MediaControl, map[string]string{"action": "pause"}},
		{"next song", intent.MediaControl, map[string]string{"action": "next"}},
		{"mute", intent.MediaControl, map[string]string{"action": "mute"}},
		{"play some music", intent.MediaControl, map[string]string{"action": "play"}},
		{"remind me to buy milk", intent.Task, map[string]string{"action": "add", "title": "Buy milk"}},
		{"add call mom to my list", intent.Task, map[string]string{"action": "add", "title": "Call mom"}},
		{"complete buy milk", intent.Task, map[string]string{"action": "complete", "title": "buy milk"}},
		{"remove call mom from list", intent.Task, map[string]string{"action": "complete", "title": "call mom"}},
		{"remove what are my task from task list", intent.Task, map[string]string{"action": "complete"}},
		{"what is the weather", intent.Weather, nil},
		{"what is 12 plus 30", intent.Math, nil},
		{"what time is it", intent.SystemInfo, map[string]string{"query": "time"}},
		{"what's on my calendar", intent.Calendar, map[string]string{"action": "list"}},
		{"schedule dentist appointment at 3 pm tomorrow", intent.Calendar, map[string]string{"action": "create", "time": "3 pm tomorrow", "title": "Dentist appointment"}},
		{"where is budget.xlsx", intent.FileSearch, map[string]string{"query": "budget.xlsx"}},
		{"who wrote hamlet", intent.Question, map[string]string{"question": "who wrote hamlet"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Kind() != tt.kind {
				t.Fatalf("Kind() = %q, want %q (params %v)", got.Kind(), tt.kind, got.Params())
			}
			for k, want := range tt.params {
				if v := got.Param(k); v != want {
					t.Errorf("Param(%q) = %q, want %q", k, v, want)
				}
			}
		})
	}
}

func TestClassify_CloseVocabularyAlwaysCloses(t *testing.T) {
	c := newTestClassifier(t)
	for _, text := range []string{"close chrome", "quit notepad", "exit the browser", "kill whatsapp", "close youtube.com", "chrome band karo"} {
		got := c.Classify(text)
		if got.Kind() != intent.AppLaunch {
			t.Errorf("%q: Kind() = %q, want app_launch", text, got.Kind())
			continue
		}
		if a := got.Param(intent.ParamAction); a != "close" {
			t.Errorf("%q: action = %q, want close", text, a)
		}
	}
}

func TestClassify_OpenAlwaysNamesAnApp(t *testing.T) {
	c := newTestClassifier(t)
	known := map[string]bool{}
	for _, a := range c.apps {
		known[a] = true
	}
	for _, text := range []string{"open", "open something", "launch firefox please", "start calculator", "open the browser", "kholo whatsapp"} {
		got := c.Classify(text)
		if got.Kind() != intent.AppLaunch || got.Param(intent.ParamAction) != "open" {
			t.Errorf("%q: got %s/%s, want app_launch/open", text, got.Kind(), got.Param(intent.ParamAction))
			continue
		}
		name := got.Param(intent.ParamAppName)
		if name == "" || !known[name] {
			t.Errorf("%q: app_name = %q, want a recognized app", text, name)
		}
	}
}

func TestClassify_URLAlwaysHasScheme(t *testing.T) {
	c := newTestClassifier(t)
	for _, text := range []string{"open github.com", "open www.python.org", "open http://localhost.in", "launch news.co/today"} {
		got := c.Classify(text)
		if url := got.Param(intent.ParamURL); !strings.HasPrefix(url, "http") {
			t.Errorf("%q: url = %q, want http prefix", text, url)
		}
	}
}

func TestClassify_FileMatchNeverLaunches(t *testing.T) {
	c := newTestClassifier(t)
	for _, text := range []string{"open resume.docx", "open draft.txt", "find photo.jpg", "launch data_2024.xlsx"} {
		if got := c.Classify(text); got.Kind() != intent.FileSearch {
			t.Errorf("%q: Kind() = %q, want file_search", text, got.Kind())
		}
	}
}

func TestClassify_WordBoundaries(t *testing.T) {
	c := newTestClassifier(t)

	// "what" must not count as "at", and "husband" must not count as "band".
	if got := c.Classify("what did my husband say"); got.Kind() != intent.Question {
		t.Errorf("Kind() = %q, want question", got.Kind())
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	c := newTestClassifier(t)
	got := c.Classify("   ")
	if got.Kind() != intent.Unknown {
		t.Errorf("Kind() = %q, want unknown", got.Kind())
	}
	if got.Confidence() != 0 {
		t.Errorf("Confidence() = %v, want 0", got.Confidence())
	}
}

func TestClassify_LanguageDetection(t *testing.T) {
	c := New(Config{DefaultApp: "brave", DetectLanguage: true}, nil)

	tests := []struct {
		text string
		want string
	}{
		{"set a timer for 5 minutes", intent.English},
		{"gana bajao", intent.Hindi},
		{"मुझे 5 बजे याद दिलाना", intent.Hindi},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.text).Language(); got != tt.want {
			t.Errorf("%q: Language() = %q, want %q", tt.text, got, tt.want)
		}
	}

	off := newTestClassifier(t)
	if got := off.Classify("gana bajao").Language(); got != intent.English {
		t.Errorf("detection off: Language() = %q, want en", got)
	}
}

func TestClassify_HindiReminder(t *testing.T) {
	c := newTestClassifier(t)
	got := c.Classify("मुझे 5 बजे याद दिलाना")
	if got.Kind() != intent.Reminder {
		t.Fatalf("Kind() = %q, want reminder", got.Kind())
	}
	if got.Param(intent.ParamTime) == "in 1 hour" {
		t.Errorf("time = %q, want the raw utterance", got.Param(intent.ParamTime))
	}
}
