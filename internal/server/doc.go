/*
包 server 管理 patentd 内部 HTTP 服务器的生命周期。

Manager 封装 net/http.Server：Start 同步完成监听后在后台提供服务，
Addr 返回实际监听地址（便于以 ":0" 启动测试），Shutdown 在
ShutdownTimeout 内排空连接。serve 命令用它同时托管 API 端口与
metrics 端口，信号处理由调用方的 context 负责。
*/
package server
