package handler

type ContextKey string

var (
	SubCtxKey     ContextKey = "sub"
	MyInfoCtx     ContextKey = "myInfo"
	UserInfoCtx   ContextKey = "userInfo"
	OvertimeIDCtx ContextKey = "overtimeID"
)
