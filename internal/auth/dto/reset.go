package dto

type ForgotPasswordInput struct {
	Email     string `json:"email"`
	IPAddress string `json:"-"`
}

type ResetPasswordInput struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
	IPAddress   string `json:"-"`
}
