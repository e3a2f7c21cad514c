package lexical

import "strings"

// Lemmatizer reduces inflected English word forms to a canonical lemma with a
// fixed table of irregular forms followed by ordered suffix rules. It does no
// part-of-speech tagging, so ambiguous forms always reduce the same way.
type Lemmatizer struct {
	irregular map[string]string
	invariant map[string]bool
}

// NewLemmatizer returns a lemmatizer backed by the built-in English tables.
func NewLemmatizer() *Lemmatizer {
	return &Lemmatizer{irregular: irregularForms, invariant: invariantForms}
}

// Lemma returns the lemma of a lowercase word.
func (l *Lemmatizer) Lemma(w string) string {
	if lemma, ok := l.irregular[w]; ok {
		return lemma
	}
	if l.invariant[w] || len(w) <= 3 {
		return w
	}
	n := len(w)
	switch {
	case strings.HasSuffix(w, "iest") && n > 5:
		return w[:n-4] + "y"
	case strings.HasSuffix(w, "ies") && n > 4:
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "ied") && n > 4:
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "eed"):
		return w
	case strings.HasSuffix(w, "ed") && n > 4:
		return restoreStem(w[:n-2], w)
	case strings.HasSuffix(w, "ing") && n > 5:
		return restoreStem(w[:n-3], w)
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "shes"),
		strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "zzes"):
		return w[:n-2]
	case strings.HasSuffix(w, "oes") && n > 5:
		return w[:n-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"),
		strings.HasSuffix(w, "is"), strings.HasSuffix(w, "ous"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:n-1]
	}
	return w
}

// restoreStem repairs a stem left after removing -ed or -ing: it undoubles a
// final consonant ("stopp" -> "stop") or restores a silent e ("mak" -> "make").
func restoreStem(stem, word string) string {
	if !hasVowel(stem) {
		return word
	}
	n := len(stem)
	last := stem[n-1]
	if n >= 2 && last == stem[n-2] && !isVowel(stem, n-1) {
		switch last {
		case 's', 'z', 'f':
			return stem
		case 'l':
			if measure(stem[:n-1]) >= 2 {
				return stem[:n-1]
			}
			return stem
		default:
			return stem[:n-1]
		}
	}
	if needsE(stem) {
		return stem + "e"
	}
	return stem
}

func needsE(stem string) bool {
	n := len(stem)
	last := stem[n-1]
	switch last {
	case 'v', 'c', 'u':
		return true
	case 'z':
		return n >= 2 && isVowel(stem, n-2)
	case 's':
		return n >= 2 && isVowel(stem, n-2) && !strings.HasSuffix(stem, "cus")
	}
	if n >= 3 {
		tail := stem[n-2:]
		pre := n - 3
		switch {
		case tail == "iz":
			return true
		case last == 'l' && !isVowel(stem, n-2) && !strings.ContainsRune("lrw", rune(stem[n-2])):
			return true
		case tail == "at" && !isVowel(stem, pre):
			return true
		case (tail == "id" || tail == "ud") && !isVowel(stem, pre):
			return true
		case last == 'r' && strings.ContainsRune("aiou", rune(stem[n-2])) && !isVowel(stem, pre):
			return true
		case tail == "in" && !isVowel(stem, pre) && measure(stem) >= 2:
			return true
		case (tail == "om" || tail == "um") && !isVowel(stem, pre):
			return true
		}
	}
	return measure(stem) == 1 && endsCVC(stem)
}

// isVowel reports whether stem[i] acts as a vowel; y counts as a vowel after a consonant.
func isVowel(s string, i int) bool {
	switch s[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	case 'y':
		return i > 0 && !isVowel(s, i-1)
	}
	return false
}

func hasVowel(s string) bool {
	for i := range len(s) {
		if isVowel(s, i) {
			return true
		}
	}
	return false
}

// measure counts vowel-consonant sequences, as in the Porter stemmer.
func measure(s string) int {
	m := 0
	prevVowel := false
	for i := range len(s) {
		v := isVowel(s, i)
		if prevVowel && !v {
			m++
		}
		prevVowel = v
	}
	return m
}

func endsCVC(s string) bool {
	n := len(s)
	if n < 3 {
		return false
	}
	if isVowel(s, n-3) || !isVowel(s, n-2) || isVowel(s, n-1) {
		return false
	}
	switch s[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

var invariantForms = setOf(
	"always", "perhaps", "afterwards", "towards", "backwards", "upwards",
	"downwards", "forwards", "whereas", "news", "means", "series", "species",
	"politics", "physics", "mathematics", "trousers", "scissors", "clothes",
	"lens", "sometimes", "besides", "nowadays", "overseas", "chaos", "canvas",
	"atlas", "alias", "bias", "morning", "evening", "nothing", "something",
	"anything", "everything", "during", "ceiling", "darling", "pudding",
	"wedding", "sibling", "stocking", "herring", "shilling", "farthing",
	"hundred", "sacred", "naked", "wicked", "wretched", "beloved", "rugged",
	"crooked", "kindred", "ragged",
)

var irregularForms = map[string]string{
	// be, have, do
	"am": "be", "is": "be", "are": "be", "was": "be", "were": "be",
	"been": "be", "being": "be", "ain": "be",
	"has": "have", "had": "have", "having": "have",
	"does": "do", "did": "do", "done": "do", "doing": "do",
	// irregular verbs
	"arose": "arise", "arisen": "arise", "awoke": "awake", "awoken": "awake",
	"bore": "bear", "borne": "bear", "beat": "beat", "beaten": "beat",
	"became": "become", "began": "begin", "begun": "begin",
	"bent": "bend", "bet": "bet", "bid": "bid", "bound": "bind",
	"bit": "bite", "bitten": "bite", "bled": "bleed", "blew": "blow",
	"blown": "blow", "broke": "break", "broken": "break", "bred": "breed",
	"brought": "bring", "built": "build", "burnt": "burn", "burst": "burst",
	"bought": "buy", "caught": "catch", "chose": "choose", "chosen": "choose",
	"clung": "cling", "came": "come", "cost": "cost", "crept": "creep",
	"dealt": "deal", "dug": "dig", "dove": "dive", "drew": "draw",
	"drawn": "draw", "dreamt": "dream", "drank": "drink", "drunk": "drink",
	"drove": "drive", "driven": "drive", "ate": "eat", "eaten": "eat",
	"fell": "fall", "fallen": "fall", "fed": "feed", "felt": "feel",
	"fought": "fight", "found": "find", "fled": "flee", "flung": "fling",
	"flew": "fly", "flown": "fly", "forbade": "forbid", "forbidden": "forbid",
	"forgot": "forget", "forgotten": "forget", "forgave": "forgive",
	"forgiven": "forgive", "froze": "freeze", "frozen": "freeze",
	"got": "get", "gotten": "get", "gave": "give", "given": "give",
	"went": "go", "gone": "go", "goes": "go", "going": "go",
	"ground": "ground", "grew": "grow", "grown": "grow", "hung": "hang",
	"heard": "hear", "hid": "hide", "hidden": "hide", "hit": "hit",
	"held": "hold", "hurt": "hurt", "kept": "keep", "knelt": "kneel",
	"knew": "know", "known": "know", "laid": "lay", "led": "lead",
	"leapt": "leap", "left": "leave", "lent": "lend", "let": "let",
	"lay": "lie", "lain": "lie", "lit": "light", "lost": "lose",
	"made": "make", "meant": "mean", "met": "meet", "paid": "pay",
	"put": "put", "quit": "quit", "read": "read", "rode": "ride",
	"ridden": "ride", "rang": "ring", "rung": "ring", "rose": "rise",
	"risen": "rise", "ran": "run", "said": "say", "saw": "see", "seen": "see",
	"sought": "seek", "sold": "sell", "sent": "send", "set": "set",
	"shook": "shake", "shaken": "shake", "shed": "shed", "shone": "shine",
	"shot": "shoot", "showed": "show", "shown": "show", "shrank": "shrink",
	"shrunk": "shrink", "shut": "shut", "sang": "sing", "sung": "sing",
	"sank": "sink", "sunk": "sink", "sat": "sit", "slept": "sleep",
	"slid": "slide", "slung": "sling", "slit": "slit", "spoke": "speak",
	"spoken": "speak", "sped": "speed", "spent": "spend", "spun": "spin",
	"spat": "spit", "split": "split", "spread": "spread", "sprang": "spring",
	"sprung": "spring", "stood": "stand", "stole": "steal", "stolen": "steal",
	"stuck": "stick", "stung": "sting", "stank": "stink", "strode": "stride",
	"struck": "strike", "strove": "strive", "striven": "strive",
	"swore": "swear", "sworn": "swear", "swept": "sweep", "swam": "swim",
	"swum": "swim", "swung": "swing", "took": "take", "taken": "take",
	"taught": "teach", "tore": "tear", "torn": "tear", "told": "tell",
	"thought": "think", "threw": "throw", "thrown": "throw", "thrust": "thrust",
	"trod": "tread", "trodden": "tread", "understood": "understand",
	"woke": "wake", "woken": "wake", "wore": "wear", "worn": "wear",
	"wove": "weave", "woven": "weave", "wept": "weep", "won": "win",
	"wound": "wind", "wrung": "wring", "wrote": "write", "written": "write",
	"withdrew": "withdraw", "withdrawn": "withdraw", "overcame": "overcome",
	"undertook": "undertake", "undertaken": "undertake",
	// regular forms the suffix rules get wrong
	"died": "die", "dies": "die", "dying": "die", "lied": "lie", "lies": "lie",
	"lying": "lie", "tied": "tie", "ties": "tie", "tying": "tie",
	"used": "use", "using": "use", "seeing": "see", "agreed": "agree",
	"freed": "free", "created": "create", "creating": "create",
	"changed": "change", "changing": "change", "arranged": "arrange",
	"managed": "manage", "escaped": "escape", "completed": "complete",
	"aches": "ache", "toes": "toe", "shoes": "shoe", "eyes": "eye",
	"needed": "need", "succeeded": "succeed", "proceeded": "proceed",
	"exceeded": "exceed", "noted": "note", "hoped": "hope", "hoping": "hope",
	"hopped": "hop", "hopping": "hop", "added": "add", "adding": "add",
	// irregular nouns
	"men": "man", "women": "woman", "children": "child", "feet": "foot",
	"teeth": "tooth", "geese": "goose", "mice": "mouse", "people": "person",
	"wolves": "wolf", "lives": "life", "knives": "knife", "wives": "wife",
	"leaves": "leaf", "halves": "half", "selves": "self", "shelves": "shelf",
	"thieves": "thief", "loaves": "loaf", "calves": "calf", "oxen": "ox",
	"crises": "crisis", "analyses": "analysis", "phenomena": "phenomenon",
	"criteria": "criterion",
	// comparatives and superlatives
	"better": "good", "best": "good", "worse": "bad", "worst": "bad",
	"further": "far", "furthest": "far", "farther": "far", "farthest": "far",
	"elder": "old", "eldest": "old",
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
