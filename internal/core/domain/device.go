package domain

// Device is this client's registration with the cloud service.
type Device struct {
	URL          string            `json:"url"`
	WebSocketURL string            `json:"webSocketUrl"`
	Services     map[string]string `json:"services"`
	RegionCode   string            `json:"regionCode,omitempty"`
	CountryCode  string            `json:"countryCode,omitempty"`
}

// ServiceURL looks up a catalog entry, e.g. ServiceURL("locus") reads "locusServiceUrl".
func (d *Device) ServiceURL(name string) string {
	if d == nil || d.Services == nil {
		return ""
	}
	return d.Services[name+"ServiceUrl"]
}

// DeviceInfo is what gets sent when creating or refreshing a registration.
type DeviceInfo struct {
	DeviceName    string `json:"deviceName"`
	Name          string `json:"name"`
	Model         string `json:"model"`
	SystemName    string `json:"systemName"`
	SystemVersion string `json:"systemVersion"`
	DeviceType    string `json:"deviceType"`
	RegionCode    string `json:"regionCode,omitempty"`
	CountryCode   string `json:"countryCode,omitempty"`
	Capabilities  struct {
		SDPSupported       bool `json:"sdpSupported"`
		GroupCallSupported bool `json:"groupCallSupported"`
	} `json:"capabilities"`
}

func NewDeviceInfo(name string) DeviceInfo {
	if name == "" {
		name = "notset"
	}
	info := DeviceInfo{
		DeviceName:    name,
		Name:          name,
		Model:         "yaphone",
		SystemName:    "go",
		SystemVersion: "1.0.0",
		DeviceType:    "UNKNOWN",
	}
	info.Capabilities.SDPSupported = true
	info.Capabilities.GroupCallSupported = true
	return info
}
