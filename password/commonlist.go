package password

// commonPasswords is the bundled offline breach set: the most common leaked
// passwords, stored lowercase. Membership is checked case-insensitively.
var commonPasswords = []string{
	"password", "123456", "123456789", "qwerty", "abc123", "password123",
	"admin", "letmein", "welcome", "monkey", "dragon", "master", "hello",
	"freedom", "whatever", "qazwsx", "trustno1", "jordan", "harley",
	"ranger", "iwantu", "jennifer", "hunter", "buster", "soccer",
	"baseball", "tiger", "charlie", "andrew", "michelle", "love",
	"sunshine", "jessica", "696969", "amanda", "access",
	"computer", "cookie", "mickey", "starwars", "shadow", "maggie",
	"654321", "george", "carol", "michael", "jessie", "diamond",
	"oliver", "mercedes", "benjamin", "secret", "maverick", "fishing",
	"hockey", "gateway", "bailey", "raiders",
	"spider", "green", "purple", "frank",
	"hacker", "legend", "rocket", "thomas", "sweeper",
	"merlin", "casper", "midnight", "skywalker", "shelby", "orange",
	"888888", "ncc1701", "charles", "brian", "mark", "startrek",
	"sierra", "leather", "232323", "4444", "beavis",
	"happy", "sophie", "ladies", "naughty", "giants", "booty",
}
