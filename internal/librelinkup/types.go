package librelinkup

import "time"

type apiResponse struct {
	Status int `json:"status"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

type loginResponse struct {
	apiResponse
	Data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		AuthTicket Ticket `json:"authTicket"`
		Redirect   bool   `json:"redirect"`
		Region     string `json:"region"`
	} `json:"data"`
}

type connectionsResponse struct {
	apiResponse
	Data   []Connection `json:"data"`
	Ticket Ticket       `json:"ticket"`
}

type graphResponse struct {
	apiResponse
	Data struct {
		Connection    Connection           `json:"connection"`
		ActiveSensors []ActiveSensor       `json:"activeSensors"`
		GraphData     []GlucoseMeasurement `json:"graphData"`
	} `json:"data"`
	Ticket Ticket `json:"ticket"`
}

// Connection is a patient the signed-in account follows.
type Connection struct {
	ID                 string             `json:"id"`
	PatientID          string             `json:"patientId"`
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	TargetLow          int                `json:"targetLow"`
	TargetHigh         int                `json:"targetHigh"`
	GlucoseMeasurement GlucoseMeasurement `json:"glucoseMeasurement"`
}

// GlucoseMeasurement is a single sensor reading.
type GlucoseMeasurement struct {
	FactoryTimestamp string  `json:"FactoryTimestamp"`
	Timestamp        string  `json:"Timestamp"`
	Type             int     `json:"Type"`
	ValueInMgPerDl   int     `json:"ValueInMgPerDl"`
	MeasurementColor int     `json:"MeasurementColor"`
	GlucoseUnits     int     `json:"GlucoseUnits"`
	Value            float64 `json:"Value"`
	IsHigh           bool    `json:"isHigh"`
	IsLow            bool    `json:"isLow"`
}

// ActiveSensor describes a sensor attached to a connection.
type ActiveSensor struct {
	DeviceID       string    `json:"deviceId"`
	SerialNumber   string    `json:"sn"`
	ActivationTime time.Time `json:"a"`
}

const timestampLayout = "1/2/2006 3:04:05 PM"

// ToTime parses a LibreLinkUp timestamp such as "6/20/2023 10:01:57 PM" as UTC.
func ToTime(libreTimestamp string) (time.Time, error) {
	return time.Parse(timestampLayout, libreTimestamp)
}
