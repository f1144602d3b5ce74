// Package staging is the local persistence backbone of the registration
// wizard: a string-keyed store of JSON-serialized values that carries
// intermediate state between steps and across restarts.
package staging

// Well-known keys. Every piece of wizard state lives under one of these.
const (
	KeyAuthToken           = "authToken"
	KeyUserData            = "userData"
	KeyIsLoggedIn          = "isLoggedIn"
	KeyRegisterData        = "registerData"
	KeyAuthData            = "authData"
	KeyUserInfo            = "userInfo"
	KeyHealthData          = "healthData"
	KeySelectedCheckupDate = "selectedCheckupDate"
	KeyDiseaseAnalysis     = "diseaseAnalysis"
	KeyLatestCheckupInfo   = "latestCheckupInfo"
)

// WizardKeys is the full set purged at finalization. A finished or
// terminally-failed wizard run must not leak state into the next.
var WizardKeys = []string{
	KeyAuthToken,
	KeyUserData,
	KeyIsLoggedIn,
	KeyRegisterData,
	KeyAuthData,
	KeyUserInfo,
	KeyHealthData,
	KeySelectedCheckupDate,
	KeyDiseaseAnalysis,
	KeyLatestCheckupInfo,
}

// Store is the persistence interface for wizard state. Values are
// JSON-serialized on the way in and decoded on the way out.
type Store interface {
	// Put serializes v and stores it under key, overwriting any prior value.
	Put(key string, v any) error
	// Get decodes the value under key into out. The boolean reports whether
	// the key was present.
	Get(key string, out any) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// ClearWizard removes every key in WizardKeys as one bulk operation.
	// Callers must never observe a partial purge.
	ClearWizard() error
}

// GetString is a convenience for the keys that hold plain strings
// (authToken, isLoggedIn). Absent keys yield "".
func GetString(s Store, key string) (string, error) {
	var v string
	ok, err := s.Get(key, &v)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}
