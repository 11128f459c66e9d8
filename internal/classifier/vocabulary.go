package classifier

// Trigger vocabularies, one per rule branch. Changing a list changes how
// ambiguous utterances are resolved, so lists are kept verbatim rather
// than generalized.
var (
	emailWords       = []string{"email", "mail", "inbox", "gmail", "unread"}
	emailSearchWords = []string{"search", "find", "from"}
	emailNoise       = setOf("search", "find", "email", "emails", "mail", "mails", "inbox", "gmail",
		"unread", "for", "my", "me", "the", "in", "about", "any", "with", "check", "read", "from")

	// reminderWords fire the reminder branch on their own. remindWords
	// need a time indicator as well; without one the utterance is a task
	// ("remind me to buy milk").
	reminderWords = []string{"reminder", "रिमाइंडर"}
	remindWords   = []string{"remind", "याद"}
	timeWords     = []string{"at", "in", "tomorrow", "next", "baje", "बजे", "kal"}
	oclockWords   = []string{"baje", "बजे"}

	timerWords = []string{"timer", "टाइमर", "countdown"}

	noteWords       = []string{"remember", "note", "save", "याद रख"}
	noteRecallWords = []string{"recall", "read my note", "show my note", "list my note", "what did i note", "what did i save"}

	launchWords = []string{"open", "launch", "start", "close", "quit", "exit", "kill", "band",
		"खोल", "खोलो", "kholo", "khol", "chalu", "chalao", "browser"}
	closeWords = []string{"close", "quit", "exit", "kill", "band", "बंद"}
	siteWords  = []string{"site", "website"}
	siteNoise  = setOf("the", "a", "my", "this", "that", "open", "web", "any")

	mediaWords = []string{"play", "pause", "next", "previous", "stop", "music", "song", "track",
		"gana", "gaana", "bajao", "roko", "volume", "awaz", "awaaz", "mute", "loud", "quiet", "resume", "skip"}
	mediaActions = []struct {
		action string
		words  []string
	}{
		{"pause", []string{"pause", "roko", "band", "stop"}},
		{"next", []string{"next", "agla", "aage", "skip"}},
		{"previous", []string{"previous", "prev", "pichla", "peeche"}},
		{"volume_up", []string{"volume up", "increase", "badha", "loud", "louder", "tez"}},
		{"volume_down", []string{"volume down", "decrease", "kam", "quiet", "dheere", "lower"}},
		{"mute", []string{"mute", "silent", "chup"}},
	}

	taskWords     = []string{"task", "todo", "to do", "list"}
	completeWords = []string{"complete", "completed", "done", "finish", "finished", "remove", "delete", "mark", "tick", "cross"}
	// completeTriggers start a task utterance even without a task noun
	// ("complete buy milk"). The broader completeWords set only picks the
	// action once the branch is entered.
	completeTriggers = []string{"complete", "completed", "finish", "finished"}
	taskListWords    = []string{"what", "show", "pending", "which", "any", "list my", "list all", "read my", "tell me"}
	taskAddWords     = []string{"add", "put", "create", "new"}
	taskLeadNoise    = setOf("add", "put", "create", "new", "a", "an", "the", "task", "tasks", "todo",
		"remind", "me", "to", "please", "can", "could", "you")
	taskTrailNoise = setOf("to", "do", "my", "the", "a", "list", "lists", "task", "tasks", "todo", "todos",
		"on", "onto", "in", "into", "from", "of", "please")
	taskCompleteNoise = setOf("complete", "completed", "done", "finish", "finished", "remove", "delete",
		"mark", "tick", "cross", "off", "as")

	weatherWords  = []string{"weather", "temperature", "forecast", "mausam", "rain", "raining", "humidity"}
	calendarWords = []string{"calendar", "meeting", "event", "appointment", "schedule", "agenda"}
	calendarNew   = []string{"schedule", "book", "create", "add", "new", "set up"}
	calendarList  = []string{"what", "show", "any", "upcoming", "check", "list", "my schedule", "my calendar"}
	mathWords     = []string{"calculate", "calc", "compute", "solve", "evaluate"}
	systemWords   = []string{"time", "date", "day", "battery", "cpu", "memory", "ram", "uptime", "system", "version", "samay"}

	// hinglishWords mark romanized Hindi. English words that happen to
	// appear in mixed speech are deliberately absent so plain English is
	// never misdetected.
	hinglishWords = setOf("kholo", "khol", "chalu", "chalao", "bajao", "roko", "agla", "pichla", "gana",
		"gaana", "baje", "karo", "kro", "karde", "krde", "lagao", "laga", "yaad", "rakh", "batao", "bata",
		"kya", "kaise", "kab", "awaz", "awaaz", "tez", "dheere", "badha", "zyada", "thoda", "mera", "meri",
		"hai", "hain", "mausam", "samay")
)
