package flagkit

import (
	"runtime"
)

const (
	SDKType    = "flagkit-go"
	SDKVersion = "0.3.0"
)

type sdkMetadata struct {
	SDKType         string `json:"sdkType"`
	SDKVersion      string `json:"sdkVersion"`
	LanguageVersion string `json:"languageVersion"`
	SessionID       string `json:"sessionID"`
}

func getSDKMetadata() sdkMetadata {
	return sdkMetadata{
		SDKType:         SDKType,
		SDKVersion:      SDKVersion,
		LanguageVersion: runtime.Version()[2:],
		SessionID:       SessionID(),
	}
}
